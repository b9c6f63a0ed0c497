package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doclane/doclane/internal/service"
)

// RetrievalLogRepository stores retrieval calls for evaluation and
// latency tracking.
type RetrievalLogRepository struct {
	pool *pgxpool.Pool
}

func NewRetrievalLogRepository(pool *pgxpool.Pool) *RetrievalLogRepository {
	return &RetrievalLogRepository{pool: pool}
}

func (r *RetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry service.RetrievalLogEntry) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO retrieval_logs (tenant_id, query, k, result_count, cache_hit, vector_ms, keyword_ms, rerank_ms, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		entry.TenantID,
		entry.Query,
		entry.K,
		entry.ResultCount,
		entry.CacheHit,
		entry.VectorMs,
		entry.KeywordMs,
		entry.RerankMs,
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
