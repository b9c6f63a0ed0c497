package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doclane/doclane/internal/domain"
)

const tenantColumns = `id, name, retriever_top_k, overfetch, hybrid_enabled, rerank_enabled, rerank_threshold, doc_cap, created_at`

// TenantRepository handles persistence of tenants and their retrieval
// settings.
type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, retriever_top_k, overfetch, hybrid_enabled, rerank_enabled, rerank_threshold, doc_cap, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name,
		t.Settings.RetrieverTopK, t.Settings.Overfetch,
		t.Settings.HybridEnabled, t.Settings.RerankEnabled,
		t.Settings.RerankThreshold, t.Settings.DocCap,
		t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrTenantAlreadyExists
	}
	return err
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (r *TenantRepository) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE name = $1`, name)
	return scanTenant(row)
}

func (r *TenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// UpdateSettings replaces a tenant's retrieval tunables.
func (r *TenantRepository) UpdateSettings(ctx context.Context, id string, s domain.RAGSettings) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE tenants
		 SET retriever_top_k = $1, overfetch = $2, hybrid_enabled = $3, rerank_enabled = $4, rerank_threshold = $5, doc_cap = $6
		 WHERE id = $7`,
		s.RetrieverTopK, s.Overfetch, s.HybridEnabled, s.RerankEnabled, s.RerankThreshold, s.DocCap, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(
		&t.ID, &t.Name,
		&t.Settings.RetrieverTopK, &t.Settings.Overfetch,
		&t.Settings.HybridEnabled, &t.Settings.RerankEnabled,
		&t.Settings.RerankThreshold, &t.Settings.DocCap,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	t.Settings = t.Settings.Normalize()
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
