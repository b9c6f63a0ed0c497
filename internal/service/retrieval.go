package service

import (
	"context"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doclane/doclane/internal/domain"
	"github.com/doclane/doclane/internal/telemetry"
)

// Fusion weights for combining normalized vector and keyword scores.
const (
	VectorWeight  = 0.65
	KeywordWeight = 0.35
)

// Rerank shortlist bounds: window = min(RerankWindowMax, max(k, RerankWindowMin)).
const (
	RerankWindowMin = 20
	RerankWindowMax = 50
)

// MaxOverfetch caps the per-search candidate window regardless of tenant
// settings.
const MaxOverfetch = 100

// searchTimeout bounds the dual search fan-out; rerankTimeout bounds the
// best-effort scoring call.
const (
	searchTimeout = 5 * time.Second
	rerankTimeout = 8 * time.Second
)

// RetrievedChunk is one ranked passage with its fused score and the
// per-method sub-scores downstream confidence gating consumes.
type RetrievedChunk struct {
	PassageID    string                  `json:"passage_id"`
	DocumentID   string                  `json:"document_id"`
	Ordinal      int                     `json:"ordinal"`
	Title        string                  `json:"title,omitempty"`
	Content      string                  `json:"content"`
	Score        float64                 `json:"score"`
	VectorScore  float64                 `json:"vector_score"`
	KeywordScore float64                 `json:"keyword_score"`
	Metadata     *domain.PassageMetadata `json:"metadata,omitempty"`
}

// RetrievalStats carries the per-phase timing breakdown.
type RetrievalStats struct {
	VectorMs  int64 `json:"vector_ms"`
	KeywordMs int64 `json:"keyword_ms"`
	RerankMs  int64 `json:"rerank_ms"`
}

// RetrievalResult is the retrieval entry point's return value.
type RetrievalResult struct {
	Chunks []RetrievedChunk `json:"chunks"`
	Stats  RetrievalStats   `json:"stats"`
}

// RetrieveOptions are the per-call knobs on top of tenant settings.
type RetrieveOptions struct {
	K           int
	UseRerank   bool
	BypassCache bool
}

// RetrievalEngine executes tenant-scoped hybrid retrieval: cached,
// dual-searched, normalized, fused, optionally reranked, and diversified.
type RetrievalEngine struct {
	tenants  TenantRepositoryInterface
	passages PassageRepositoryInterface
	embedder EmbeddingClient
	reranker RerankClient
	cache    *RetrievalCache
	logs     RetrievalLogRepositoryInterface
}

func NewRetrievalEngine(
	tenants TenantRepositoryInterface,
	passages PassageRepositoryInterface,
	embedder EmbeddingClient,
	reranker RerankClient,
	cache *RetrievalCache,
	logs RetrievalLogRepositoryInterface,
) *RetrievalEngine {
	if cache == nil {
		cache = NewRetrievalCache(DefaultCacheTTL)
	}
	return &RetrievalEngine{
		tenants:  tenants,
		passages: passages,
		embedder: embedder,
		reranker: reranker,
		cache:    cache,
		logs:     logs,
	}
}

// strategy is the configuration branch resolved once at the start of a
// retrieval call, so the fusion math below stays free of settings checks.
type strategy struct {
	k               int
	overfetch       int
	hybrid          bool
	rerankEnabled   bool
	rerankExplicit  bool
	rerankThreshold float64
	docCap          int
}

func resolveStrategy(settings domain.RAGSettings, opts RetrieveOptions) strategy {
	settings = settings.Normalize()

	k := opts.K
	if k <= 0 {
		k = settings.RetrieverTopK
	}

	overfetch := settings.Overfetch
	if overfetch > MaxOverfetch {
		overfetch = MaxOverfetch
	}
	if overfetch < k {
		overfetch = k
	}

	return strategy{
		k:               k,
		overfetch:       overfetch,
		hybrid:          settings.HybridEnabled,
		rerankEnabled:   settings.RerankEnabled || opts.UseRerank,
		rerankExplicit:  opts.UseRerank,
		rerankThreshold: settings.RerankThreshold,
		docCap:          settings.DocCap,
	}
}

// Retrieve returns the tenant's top passages for a query, deterministically
// ordered, with sub-scores and a timing breakdown.
func (e *RetrievalEngine) Retrieve(ctx context.Context, tenantID, query string, opts RetrieveOptions) (*RetrievalResult, error) {
	started := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "retrieval.retrieve", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "retrieve",
	})
	defer span.End()

	if normalizeQuery(query) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}

	tenant, err := e.tenants.GetByID(ctx, tenantID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	strat := resolveStrategy(tenant.Settings, opts)

	key := cacheKey(tenantID, query, strat.k, strat.rerankExplicit)
	if !opts.BypassCache {
		if cached, ok := e.cache.Get(key); ok {
			e.logRetrieval(ctx, tenantID, query, strat.k, len(cached.Chunks), true, cached.Stats, started)
			return cached, nil
		}
	}

	queryVec, err := e.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	vectorHits, keywordHits, stats, err := e.dualSearch(ctx, tenantID, query, queryVec, strat)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	candidates := fuse(vectorHits, keywordHits, strat.hybrid)
	sortCandidates(candidates)

	candidates, rerankMs := e.maybeRerank(ctx, query, candidates, strat)
	stats.RerankMs = rerankMs

	chunks := applyDiversityCap(candidates, strat.k, strat.docCap)

	result := &RetrievalResult{Chunks: chunks, Stats: stats}
	if !opts.BypassCache {
		e.cache.Set(key, result)
	}
	e.logRetrieval(ctx, tenantID, query, strat.k, len(chunks), false, stats, started)

	return result, nil
}

// dualSearch races vector and keyword search and joins both before fusion.
// Keyword search is skipped entirely when hybrid is disabled.
func (e *RetrievalEngine) dualSearch(ctx context.Context, tenantID, query string, queryVec []float32, strat strategy) ([]*SearchHit, []*SearchHit, RetrievalStats, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var (
		stats       RetrievalStats
		vectorHits  []*SearchHit
		keywordHits []*SearchHit
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		started := time.Now()
		hits, err := e.passages.SearchVector(gctx, tenantID, queryVec, strat.overfetch)
		stats.VectorMs = time.Since(started).Milliseconds()
		if err != nil {
			return domain.NewSearchBackendError("vector search failed", err)
		}
		vectorHits = hits
		return nil
	})

	if strat.hybrid {
		g.Go(func() error {
			started := time.Now()
			hits, err := e.passages.SearchKeyword(gctx, tenantID, ExpandQuery(query), strat.overfetch)
			stats.KeywordMs = time.Since(started).Milliseconds()
			if err != nil {
				return domain.NewSearchBackendError("keyword search failed", err)
			}
			keywordHits = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, stats, err
	}
	return vectorHits, keywordHits, stats, nil
}

// candidateKey identifies a passage across the two result sets.
type candidateKey struct {
	DocumentID string
	Ordinal    int
}

// normalizeScores min-max normalizes one result set onto [0, 1]. When all
// scores are equal they map to 0.5 so the set neither dominates nor
// vanishes in fusion.
func normalizeScores(hits []*SearchHit) map[candidateKey]float64 {
	out := make(map[candidateKey]float64, len(hits))
	if len(hits) == 0 {
		return out
	}

	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}

	for _, h := range hits {
		k := candidateKey{DocumentID: h.DocumentID, Ordinal: h.Ordinal}
		if max == min {
			out[k] = 0.5
			continue
		}
		out[k] = (h.Score - min) / (max - min)
	}
	return out
}

// fuse merges the two independently normalized result sets into combined
// candidates. A candidate missing from one side contributes 0 for that
// side. In vector-only mode the normalized vector score is the combined
// score, undiluted by the absent keyword side.
func fuse(vectorHits, keywordHits []*SearchHit, hybrid bool) []RetrievedChunk {
	vnorm := normalizeScores(vectorHits)
	knorm := normalizeScores(keywordHits)

	byKey := make(map[candidateKey]*SearchHit, len(vectorHits)+len(keywordHits))
	for _, h := range vectorHits {
		byKey[candidateKey{DocumentID: h.DocumentID, Ordinal: h.Ordinal}] = h
	}
	for _, h := range keywordHits {
		k := candidateKey{DocumentID: h.DocumentID, Ordinal: h.Ordinal}
		if _, ok := byKey[k]; !ok {
			byKey[k] = h
		}
	}

	out := make([]RetrievedChunk, 0, len(byKey))
	for k, h := range byKey {
		v := vnorm[k]
		kw := knorm[k]

		score := VectorWeight*v + KeywordWeight*kw
		if !hybrid {
			score = v
		}

		out = append(out, RetrievedChunk{
			PassageID:    h.PassageID,
			DocumentID:   h.DocumentID,
			Ordinal:      h.Ordinal,
			Title:        h.Title,
			Content:      h.Content,
			Score:        score,
			VectorScore:  v,
			KeywordScore: kw,
			Metadata:     h.Metadata,
		})
	}
	return out
}

// sortCandidates orders by score descending with ties broken by document
// id then ordinal, never by insertion order.
func sortCandidates(chunks []RetrievedChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].Ordinal < chunks[j].Ordinal
	})
}

// maybeRerank re-scores the top window with the external model when fused
// confidence looks weak (or rerank was explicitly requested). Failures
// fall back silently to the pre-rerank order; rerank is a quality
// enhancement, never a hard dependency.
func (e *RetrievalEngine) maybeRerank(ctx context.Context, query string, candidates []RetrievedChunk, strat strategy) ([]RetrievedChunk, int64) {
	if !strat.rerankEnabled || len(candidates) == 0 || e.reranker == nil {
		return candidates, 0
	}
	if !strat.rerankExplicit && candidates[0].Score >= strat.rerankThreshold {
		return candidates, 0
	}

	window := strat.k
	if window < RerankWindowMin {
		window = RerankWindowMin
	}
	if window > RerankWindowMax {
		window = RerankWindowMax
	}
	if window > len(candidates) {
		window = len(candidates)
	}

	texts := make([]string, window)
	for i := 0; i < window; i++ {
		texts[i] = candidates[i].Content
	}

	started := time.Now()
	rctx, cancel := context.WithTimeout(ctx, rerankTimeout)
	scores, err := e.reranker.ScorePassages(rctx, query, texts)
	cancel()
	elapsed := time.Since(started).Milliseconds()

	if err != nil || len(scores) != window {
		telemetry.AddBreadcrumb(ctx, "retrieval", "rerank failed, using fused order")
		if err != nil {
			log.Printf("retrieval: rerank failed, falling back: %v", err)
		}
		return candidates, elapsed
	}

	type scored struct {
		chunk RetrievedChunk
		score float64
	}
	head := make([]scored, window)
	for i := 0; i < window; i++ {
		head[i] = scored{chunk: candidates[i], score: scores[i]}
	}
	sort.Slice(head, func(i, j int) bool {
		if head[i].score != head[j].score {
			return head[i].score > head[j].score
		}
		if head[i].chunk.DocumentID != head[j].chunk.DocumentID {
			return head[i].chunk.DocumentID < head[j].chunk.DocumentID
		}
		return head[i].chunk.Ordinal < head[j].chunk.Ordinal
	})

	reranked := make([]RetrievedChunk, 0, len(candidates))
	for _, s := range head {
		reranked = append(reranked, s.chunk)
	}
	reranked = append(reranked, candidates[window:]...)

	return reranked, elapsed
}

// applyDiversityCap greedily selects the ordered candidates until k are
// taken, skipping any whose document already contributed docCap passages.
func applyDiversityCap(candidates []RetrievedChunk, k, docCap int) []RetrievedChunk {
	if k <= 0 {
		return nil
	}

	perDoc := make(map[string]int)
	out := make([]RetrievedChunk, 0, k)
	for _, c := range candidates {
		if docCap > 0 && perDoc[c.DocumentID] >= docCap {
			continue
		}
		out = append(out, c)
		perDoc[c.DocumentID]++
		if len(out) == k {
			break
		}
	}
	return out
}

func (e *RetrievalEngine) logRetrieval(ctx context.Context, tenantID, query string, k, resultCount int, cacheHit bool, stats RetrievalStats, started time.Time) {
	if e.logs == nil {
		return
	}
	_, err := e.logs.CreateRetrievalLog(ctx, RetrievalLogEntry{
		TenantID:    tenantID,
		Query:       query,
		K:           k,
		ResultCount: resultCount,
		CacheHit:    cacheHit,
		VectorMs:    stats.VectorMs,
		KeywordMs:   stats.KeywordMs,
		RerankMs:    stats.RerankMs,
		DurationMs:  time.Since(started).Milliseconds(),
	})
	if err != nil {
		log.Printf("retrieval: failed to write retrieval log: %v", err)
	}
}
