package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"

	// Pipeline error codes. Extraction, embedding and search failures are
	// fatal to the operation that raised them; rerank failures are recovered
	// inside the retrieval engine and never reach a caller.
	ErrCodeExtraction    = "EXTRACTION_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeRerank        = "RERANK_ERROR"
	ErrCodeSearchBackend = "SEARCH_BACKEND_ERROR"
)

// Validation errors
var (
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrUnsupportedFileType   = NewDomainError(ErrCodeValidation, "unsupported file type")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrPassageNotFound  = NewDomainError(ErrCodeNotFound, "passage not found")
	ErrTenantNotFound   = NewDomainError(ErrCodeNotFound, "tenant not found")
	ErrAPIKeyNotFound   = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	ErrTenantAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "tenant already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Pipeline errors
var (
	ErrNoExtractableText = NewDomainError(ErrCodeExtraction, "document contains no extractable text")
	ErrSearchFailed      = NewDomainError(ErrCodeSearchBackend, "search failed")
)

// NewExtractionError wraps an extractor failure. The enclosing document is
// demoted to error state with this message preserved.
func NewExtractionError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExtraction, message, err)
}

// NewEmbeddingError wraps an embedding provider failure.
func NewEmbeddingError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, message, err)
}

// NewRerankError wraps a rerank provider failure.
func NewRerankError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeRerank, message, err)
}

// NewSearchBackendError wraps a vector or keyword search failure.
func NewSearchBackendError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeSearchBackend, message, err)
}

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code string) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == code
}
