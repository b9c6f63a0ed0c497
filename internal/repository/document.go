package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/pagination"
	"github.com/doclane/doclane/internal/service"
)

const documentColumns = `id, tenant_id, title, status, content_hash, version, error, source_key, created_at, updated_at`

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, tenant_id, title, status, content_hash, version, error, source_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.TenantID, d.Title, d.Status, d.ContentHash, d.Version,
		nullableString(d.Error), nullableString(d.SourceKey), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanDocument(row)
}

// GetByTitle returns the live document for a title within a tenant.
// Titles are unique per tenant; re-ingestion resolves through this lookup.
func (r *DocumentRepository) GetByTitle(ctx context.Context, tenantID, title string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = $1 AND title = $2`,
		tenantID, title)
	return scanDocument(row)
}

func (r *DocumentRepository) ListWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*service.DocumentPage, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE tenant_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			tenantID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE tenant_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			tenantID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	var nextCursor string
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.DocumentPage{
		Items:      docs,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// SetStatus transitions a document's lifecycle state. A non-empty
// errMessage is stored alongside the error state and cleared otherwise.
func (r *DocumentRepository) SetStatus(ctx context.Context, tenantID, id string, status domain.DocumentStatus, errMessage string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error = $2, updated_at = $3
		 WHERE tenant_id = $4 AND id = $5`,
		status, nullableString(errMessage), time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkSuperseded bumps the version and resets the lifecycle for
// re-ingestion of an existing title.
func (r *DocumentRepository) MarkSuperseded(ctx context.Context, tenantID, id, contentHash string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET version = version + 1, status = $1, content_hash = $2, error = NULL, updated_at = $3
		 WHERE tenant_id = $4 AND id = $5`,
		domain.DocumentStatusPending, contentHash, time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// SetSourceKey records the object key of the archived raw upload.
func (r *DocumentRepository) SetSourceKey(ctx context.Context, tenantID, id, sourceKey string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET source_key = $1, updated_at = $2
		 WHERE tenant_id = $3 AND id = $4`,
		sourceKey, time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, tenantID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListStale returns documents stuck in pending or processing longer than
// the cutoff, used by the ingest sweeper to re-claim work after a crash.
func (r *DocumentRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE status IN ($1, $2) AND updated_at < $3
		 ORDER BY updated_at ASC
		 LIMIT $4`,
		domain.DocumentStatusPending, domain.DocumentStatusProcessing, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var errMessage, sourceKey *string
	err := row.Scan(
		&d.ID, &d.TenantID, &d.Title, &d.Status, &d.ContentHash, &d.Version,
		&errMessage, &sourceKey, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if errMessage != nil {
		d.Error = *errMessage
	}
	if sourceKey != nil {
		d.SourceKey = *sourceKey
	}
	return &d, nil
}
