package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/doclane/doclane/internal/domain"
)

// Defaults for the ingest sweeper. A document sitting in pending or
// processing longer than the stale cutoff was orphaned by a crash or
// deploy mid-ingestion.
const (
	DefaultStaleAfter = 10 * time.Minute
	DefaultSweepBatch = 20
)

// StaleDocumentSource lists and updates documents stuck mid-ingestion.
type StaleDocumentSource interface {
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Document, error)
	SetStatus(ctx context.Context, tenantID, id string, status domain.DocumentStatus, errMessage string) error
}

// Reprocessor re-runs ingestion from a document's archived upload.
type Reprocessor interface {
	Reprocess(ctx context.Context, tenantID, documentID string) (*domain.Document, error)
}

// IngestSweeper re-claims documents orphaned in pending/processing.
// Documents with an archived source are re-processed; the rest are marked
// errored so clients stop polling them. A reprocess failure also lands the
// document in error state, so a persistently failing document is not
// retried forever.
type IngestSweeper struct {
	docs        StaleDocumentSource
	reprocessor Reprocessor
	staleAfter  time.Duration
	batchSize   int
}

func NewIngestSweeper(docs StaleDocumentSource, reprocessor Reprocessor, staleAfter time.Duration, batchSize int) *IngestSweeper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatch
	}
	return &IngestSweeper{
		docs:        docs,
		reprocessor: reprocessor,
		staleAfter:  staleAfter,
		batchSize:   batchSize,
	}
}

// ProcessJobs runs one sweep.
func (s *IngestSweeper) ProcessJobs(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.staleAfter)

	stale, err := s.docs.ListStale(ctx, cutoff, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch stale documents: %w", err)
	}

	for _, doc := range stale {
		if doc.SourceKey == "" {
			msg := "ingestion interrupted and no archived source to retry from"
			if err := s.docs.SetStatus(ctx, doc.TenantID, doc.ID, domain.DocumentStatusError, msg); err != nil {
				log.Printf("sweeper: failed to mark document %s errored: %v", doc.ID, err)
			}
			continue
		}

		log.Printf("sweeper: re-claiming stale document %s (stuck in %s)", doc.ID, doc.Status)
		if _, err := s.reprocessor.Reprocess(ctx, doc.TenantID, doc.ID); err != nil {
			log.Printf("sweeper: reprocess of document %s failed: %v", doc.ID, err)
		}
	}

	return nil
}
