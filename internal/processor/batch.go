package processor

import (
	"bank_onboarder/internal/domain"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Batch drives many records through an Orchestrator using a fixed pool of
// workers. Results keep the order of the input records.
type Batch struct {
	orchestrator *Orchestrator
	workers      int
}

func NewBatch(orchestrator *Orchestrator, workers int) *Batch {
	if workers <= 0 {
		workers = 1
	}
	return &Batch{
		orchestrator: orchestrator,
		workers:      workers,
	}
}

// Run returns one result per record. Records never started because ctx
// was cancelled are reported as unexpected errors.
func (b *Batch) Run(ctx context.Context, records []domain.CustomerRecord) []domain.ProcessResult {
	results := make([]domain.ProcessResult, len(records))
	if len(records) == 0 {
		return results
	}

	started := make([]bool, len(records))
	indexCh := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			results[idx] = b.orchestrator.Process(ctx, records[idx])
		}
	}

	workers := min(b.workers, len(records))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := range records {
		select {
		case indexCh <- i:
			started[i] = true
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()

	for i := range records {
		if !started[i] {
			results[i] = b.orchestrator.abandon(ctx, records[i], ctx.Err())
		}
	}
	return results
}

func (o *Orchestrator) abandon(ctx context.Context, rec domain.CustomerRecord, cause error) domain.ProcessResult {
	res := domain.NewProcessResult(rec)
	logger := o.logger.With(
		slog.String("customer", rec.Label()),
		slog.Int("row", rec.Row))
	o.finalize(ctx, logger, res, unexpected(StageOpen, cause), time.Now())
	return *res
}
