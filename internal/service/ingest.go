package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/doclane/doclane/internal/chunker"
	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/extract"
	"github.com/doclane/doclane/internal/pagination"
	"github.com/doclane/doclane/internal/telemetry"
)

// IngestService turns raw uploads into indexed documents: extract, chunk,
// embed, persist. Each upload is processed as one unit of work; a failure
// at any stage marks the document errored with no passages written.
type IngestService struct {
	docs     DocumentRepositoryInterface
	passages PassageRepositoryInterface
	tx       TxRunnerInterface
	embedder EmbeddingClient
	store    ObjectStore
	uuidGen  UUIDGenerator
	chunkCfg chunker.Config
}

func NewIngestService(
	docs DocumentRepositoryInterface,
	passages PassageRepositoryInterface,
	tx TxRunnerInterface,
	embedder EmbeddingClient,
	store ObjectStore,
	uuidGen UUIDGenerator,
	chunkCfg chunker.Config,
) *IngestService {
	if chunkCfg.TargetTokens <= 0 {
		chunkCfg = chunker.DefaultConfig()
	}
	return &IngestService{
		docs:     docs,
		passages: passages,
		tx:       tx,
		embedder: embedder,
		store:    store,
		uuidGen:  uuidGen,
		chunkCfg: chunkCfg,
	}
}

// Ingest processes one upload end to end. Re-uploading an unchanged file
// short-circuits; a changed file under an existing title bumps the
// version and replaces all passages.
func (s *IngestService) Ingest(ctx context.Context, tenantID, filename string, data []byte, allowedRoles []string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.ingest", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "ingest",
	})
	defer span.End()

	doc, unchanged, err := s.prepare(ctx, tenantID, filename, data)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if unchanged {
		return doc, nil
	}

	if err := s.process(ctx, doc, filename, data, allowedRoles); err != nil {
		span.SetError(err)
		return nil, err
	}

	return s.docs.GetByID(ctx, tenantID, doc.ID)
}

// IngestAsync registers the upload and runs the pipeline in its own
// goroutine. The returned document is pending; callers poll its status.
func (s *IngestService) IngestAsync(ctx context.Context, tenantID, filename string, data []byte, allowedRoles []string) (*domain.Document, error) {
	doc, unchanged, err := s.prepare(ctx, tenantID, filename, data)
	if err != nil {
		return nil, err
	}
	if unchanged {
		return doc, nil
	}

	go func() {
		ctx, span := telemetry.StartSpan(context.Background(), "ingest.process", telemetry.SpanAttributes{
			TenantID:   doc.TenantID,
			DocumentID: doc.ID,
			Operation:  "ingest",
		})
		defer span.End()

		if err := s.process(ctx, doc, filename, data, allowedRoles); err != nil {
			span.SetError(err)
			log.Printf("ingest: background processing failed for document %s: %v", doc.ID, err)
		}
	}()

	return doc, nil
}

// prepare validates the upload and resolves its document row: a fresh row
// for a new title, a superseded row for changed content, or the existing
// row untouched when the hash is unchanged (unchanged=true).
func (s *IngestService) prepare(ctx context.Context, tenantID, filename string, data []byte) (doc *domain.Document, unchanged bool, err error) {
	if len(data) == 0 {
		return nil, false, domain.NewDomainError(domain.ErrCodeValidation, "file is empty")
	}
	if !extract.IsSupported(filename) {
		return nil, false, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), domain.ErrUnsupportedFileType)
	}

	title := filepath.Base(filename)
	hash := contentHash(data)

	doc, err = s.docs.GetByTitle(ctx, tenantID, title)
	switch {
	case err == nil:
		if doc.ContentHash == hash && doc.Status == domain.DocumentStatusReady {
			// unchanged content, nothing to reindex
			return doc, true, nil
		}
		if err := s.docs.MarkSuperseded(ctx, tenantID, doc.ID, hash); err != nil {
			return nil, false, err
		}
		doc, err = s.docs.GetByID(ctx, tenantID, doc.ID)
		if err != nil {
			return nil, false, err
		}
	case err == domain.ErrDocumentNotFound:
		doc = domain.NewDocument(s.uuidGen.NewString(), tenantID, title, hash, time.Now().UTC())
		if err := s.docs.Create(ctx, doc); err != nil {
			return nil, false, err
		}
	default:
		return nil, false, err
	}

	s.archive(ctx, doc, filename, data)
	return doc, false, nil
}

// process runs extraction through persistence for a document already in
// pending state. Any failure demotes the document to error with the
// message preserved and writes no passages.
func (s *IngestService) process(ctx context.Context, doc *domain.Document, filename string, data []byte, allowedRoles []string) error {
	if err := s.docs.SetStatus(ctx, doc.TenantID, doc.ID, domain.DocumentStatusProcessing, ""); err != nil {
		return err
	}

	passages, err := s.buildPassages(ctx, doc, filename, data, allowedRoles)
	if err != nil {
		if statusErr := s.docs.SetStatus(ctx, doc.TenantID, doc.ID, domain.DocumentStatusError, err.Error()); statusErr != nil {
			log.Printf("ingest: failed to record error state for document %s: %v", doc.ID, statusErr)
		}
		return err
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Passages().ReplaceForDocument(ctx, doc.ID, passages); err != nil {
			return err
		}
		return repos.Documents().SetStatus(ctx, doc.TenantID, doc.ID, domain.DocumentStatusReady, "")
	})
	if err != nil {
		if statusErr := s.docs.SetStatus(ctx, doc.TenantID, doc.ID, domain.DocumentStatusError, err.Error()); statusErr != nil {
			log.Printf("ingest: failed to record error state for document %s: %v", doc.ID, statusErr)
		}
		return err
	}

	return nil
}

// buildPassages extracts, chunks and embeds the upload. The returned
// batch is validated as a whole; a malformed row fails the document
// rather than indexing it partially.
func (s *IngestService) buildPassages(ctx context.Context, doc *domain.Document, filename string, data []byte, allowedRoles []string) ([]*domain.Passage, error) {
	res, err := extract.Extract(data, filename)
	if err != nil {
		return nil, err
	}

	chunks := chunker.Split(res.Sections, s.chunkCfg)
	if len(chunks) == 0 {
		return nil, domain.ErrNoExtractableText
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	passages := make([]*domain.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = &domain.Passage{
			ID:           s.uuidGen.NewString(),
			DocumentID:   doc.ID,
			TenantID:     doc.TenantID,
			Ordinal:      c.Ordinal,
			Title:        c.Title,
			Content:      c.Text,
			Embedding:    vectors[i],
			AllowedRoles: allowedRoles,
			Metadata:     passageMetadata(res, c),
			CreatedAt:    now,
		}
	}

	if err := domain.ValidatePassageBatch(passages); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "passage batch validation failed", err)
	}
	return passages, nil
}

// passageMetadata propagates layout provenance onto chunks extracted from
// positioned formats: the page range, the bounding-box union of the
// chunk's lines, key/value candidates on those pages, and per-line boxes.
func passageMetadata(res *extract.Result, c chunker.Chunk) *domain.PassageMetadata {
	if res.Layout == nil || c.SectionIndex >= len(res.Sections) {
		return nil
	}
	page := res.Sections[c.SectionIndex].Page
	if page == 0 {
		return nil
	}

	meta := &domain.PassageMetadata{PageStart: page, PageEnd: page}
	for _, ln := range res.Layout.Lines {
		if ln.Page != page || !strings.Contains(c.Text, ln.Text) {
			continue
		}
		meta.Lines = append(meta.Lines, domain.LineBox{Text: ln.Text, Page: ln.Page, Box: ln.Box})
		meta.Box = meta.Box.Union(ln.Box)
	}
	for _, kv := range res.Layout.KeyValues {
		if kv.Page >= meta.PageStart && kv.Page <= meta.PageEnd {
			meta.KeyValues = append(meta.KeyValues, kv)
		}
	}
	return meta
}

// archive stores the raw upload for later re-processing. Best effort: an
// archival failure does not fail the ingestion.
func (s *IngestService) archive(ctx context.Context, doc *domain.Document, filename string, data []byte) {
	if s.store == nil {
		return
	}
	key := fmt.Sprintf("%s/%s/v%d/%s", doc.TenantID, doc.ID, doc.Version, filepath.Base(filename))
	if err := s.store.Put(ctx, key, data, contentTypeFor(filename)); err != nil {
		log.Printf("ingest: failed to archive upload for document %s: %v", doc.ID, err)
		return
	}
	if err := s.docs.SetSourceKey(ctx, doc.TenantID, doc.ID, key); err != nil {
		log.Printf("ingest: failed to record source key for document %s: %v", doc.ID, err)
		return
	}
	doc.SourceKey = key
}

// Reprocess re-runs the pipeline over a document's archived upload bytes.
func (s *IngestService) Reprocess(ctx context.Context, tenantID, documentID string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.reprocess", telemetry.SpanAttributes{
		TenantID:   tenantID,
		DocumentID: documentID,
		Operation:  "reprocess",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.SourceKey == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "document has no archived source to reprocess")
	}
	if s.store == nil {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "object storage is not configured")
	}

	data, err := s.store.Get(ctx, doc.SourceKey)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to fetch archived source", err)
	}

	if err := s.docs.MarkSuperseded(ctx, tenantID, doc.ID, contentHash(data)); err != nil {
		return nil, err
	}
	doc, err = s.docs.GetByID(ctx, tenantID, doc.ID)
	if err != nil {
		return nil, err
	}

	roles, err := s.existingRoles(ctx, tenantID, doc.ID)
	if err != nil {
		return nil, err
	}

	if err := s.process(ctx, doc, doc.SourceKey, data, roles); err != nil {
		span.SetError(err)
		return nil, err
	}
	return s.docs.GetByID(ctx, tenantID, doc.ID)
}

// existingRoles carries a document's allowed-role list across reprocessing.
func (s *IngestService) existingRoles(ctx context.Context, tenantID, documentID string) ([]string, error) {
	existing, err := s.passages.GetByDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return existing[0].AllowedRoles, nil
}

// GetDocument returns one document with its lifecycle status.
func (s *IngestService) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	return s.docs.GetByID(ctx, tenantID, id)
}

// ListDocuments returns a cursor-paginated page of the tenant's documents.
func (s *IngestService) ListDocuments(ctx context.Context, tenantID, cursor string, limit int) (*DocumentPage, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.docs.ListWithCursor(ctx, tenantID, decoded, limit)
}

// DeleteDocument removes a document and its passages.
func (s *IngestService) DeleteDocument(ctx context.Context, tenantID, id string) error {
	doc, err := s.docs.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Passages().ReplaceForDocument(ctx, doc.ID, nil); err != nil {
			return err
		}
		return repos.Documents().Delete(ctx, tenantID, doc.ID)
	})
	if err != nil {
		return err
	}

	if s.store != nil && doc.SourceKey != "" {
		if err := s.store.Delete(ctx, doc.SourceKey); err != nil {
			log.Printf("ingest: failed to delete archived source for document %s: %v", doc.ID, err)
		}
	}
	return nil
}

func contentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".html", ".htm":
		return "text/html"
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	default:
		return "text/plain"
	}
}
