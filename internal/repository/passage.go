package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/service"
)

// PassageRepository handles persistence and search of passages.
type PassageRepository struct {
	db dbtx
}

func NewPassageRepository(pool *pgxpool.Pool) *PassageRepository {
	return &PassageRepository{db: pool}
}

func NewPassageRepositoryWithTx(tx pgx.Tx) *PassageRepository {
	return &PassageRepository{db: tx}
}

// ReplaceForDocument deletes a document's existing passages and inserts
// the new set. Run inside a transaction so a failed ingestion never
// leaves a partially indexed document.
func (r *PassageRepository) ReplaceForDocument(ctx context.Context, documentID string, passages []*domain.Passage) error {
	_, err := r.db.Exec(ctx, `DELETE FROM passages WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(passages) == 0 {
		return nil
	}

	for _, p := range passages {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		var metadata []byte
		if p.Metadata != nil {
			metadata, err = json.Marshal(p.Metadata)
			if err != nil {
				return err
			}
		}

		_, err := r.db.Exec(ctx,
			`INSERT INTO passages
				(id, document_id, tenant_id, ordinal, title, content, embedding, allowed_roles, metadata, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID,
			p.DocumentID,
			p.TenantID,
			p.Ordinal,
			p.Title,
			p.Content,
			pgvector.NewVector(p.Embedding),
			p.AllowedRoles,
			metadata,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *PassageRepository) GetByDocument(ctx context.Context, tenantID, documentID string) ([]*domain.Passage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, tenant_id, ordinal, title, content, allowed_roles, metadata, created_at
		 FROM passages
		 WHERE tenant_id = $1 AND document_id = $2
		 ORDER BY ordinal ASC`,
		tenantID, documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passages []*domain.Passage
	for rows.Next() {
		var p domain.Passage
		var metadata []byte
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.TenantID, &p.Ordinal, &p.Title, &p.Content, &p.AllowedRoles, &metadata, &p.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			p.Metadata = &domain.PassageMetadata{}
			if err := json.Unmarshal(metadata, p.Metadata); err != nil {
				return nil, err
			}
		}
		passages = append(passages, &p)
	}
	return passages, rows.Err()
}

func (r *PassageRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM passages WHERE document_id = $1`, documentID,
	).Scan(&count)
	return count, err
}

// SearchVector returns the tenant's nearest passages by cosine distance.
// Score is mapped to (0, 1] via 1 / (1 + distance).
func (r *PassageRepository) SearchVector(ctx context.Context, tenantID string, embedding []float32, limit int) ([]*service.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, ordinal, title, content, metadata,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM passages
		 WHERE tenant_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchHits(rows)
}

// SearchKeyword returns the tenant's passages ranked by full-text
// relevance. The query may contain OR-joined synonym phrases.
func (r *PassageRepository) SearchKeyword(ctx context.Context, tenantID, query string, limit int) ([]*service.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, ordinal, title, content, metadata,
		        ts_rank(tsv, websearch_to_tsquery('english', $1)) AS score
		 FROM passages
		 WHERE tenant_id = $2 AND tsv @@ websearch_to_tsquery('english', $1)
		 ORDER BY score DESC, document_id ASC, ordinal ASC
		 LIMIT $3`,
		query, tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchHits(rows)
}

func scanSearchHits(rows pgx.Rows) ([]*service.SearchHit, error) {
	var hits []*service.SearchHit
	for rows.Next() {
		var hit service.SearchHit
		var metadata []byte
		if err := rows.Scan(&hit.PassageID, &hit.DocumentID, &hit.Ordinal, &hit.Title, &hit.Content, &metadata, &hit.Score); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			hit.Metadata = &domain.PassageMetadata{}
			if err := json.Unmarshal(metadata, hit.Metadata); err != nil {
				return nil, err
			}
		}
		hits = append(hits, &hit)
	}
	return hits, rows.Err()
}
