package fetch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pressharvest/internal/locator"
	"pressharvest/internal/store"
)

// Outcome records the terminal result of one locator within a batch run.
type Outcome struct {
	Ordinal   int
	Succeeded bool
	Attempts  int
	Err       string
}

// Config controls Orchestrator behavior.
type Config struct {
	// Workers is the fixed width of the download pool.
	Workers int
	// BatchSize bounds each window processed by Run.
	BatchSize int
	// CheckpointEvery persists progress after this many completions.
	CheckpointEvery int
	// BatchPause is the delay between sequential batch windows.
	BatchPause time.Duration
}

// Orchestrator fetches locator windows with a worker pool, skipping
// ordinals whose artifact already exists, retrying transient failures,
// and checkpointing progress under a single lock.
type Orchestrator struct {
	fetcher    Fetcher
	retry      RetryPolicy
	artifacts  *store.ArtifactStore
	checkpoint *store.CheckpointFile
	cfg        Config
	logger     *zap.Logger
	runID      string
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	fetcher Fetcher,
	retry RetryPolicy,
	artifacts *store.ArtifactStore,
	checkpoint *store.CheckpointFile,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == nil {
		retry = NewLinearRetryPolicy()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 6
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}
	return &Orchestrator{
		fetcher:    fetcher,
		retry:      retry,
		artifacts:  artifacts,
		checkpoint: checkpoint,
		cfg:        cfg,
		logger:     logger,
		runID:      uuid.NewString(),
	}
}

// Run processes records from startOrdinal to the end of the list in
// sequential batch windows, pausing between windows to reduce load on the
// source. A boundary checkpoint is written after each window.
func (o *Orchestrator) Run(ctx context.Context, records []locator.Record, startOrdinal int) ([]Outcome, error) {
	total := len(records)
	if total == 0 || startOrdinal >= total {
		o.logger.Info("nothing to download", zap.Int("total", total), zap.Int("start", startOrdinal))
		return nil, nil
	}
	if startOrdinal < 0 {
		startOrdinal = 0
	}

	o.logger.Info("starting download run",
		zap.String("run_id", o.runID),
		zap.Int("total", total),
		zap.Int("start", startOrdinal),
		zap.Int("workers", o.cfg.Workers),
		zap.Int("batch_size", o.cfg.BatchSize),
	)

	var all []Outcome
	for current := startOrdinal; current < total; current += o.cfg.BatchSize {
		outcomes, err := o.RunBatch(ctx, records, current, o.cfg.BatchSize)
		all = append(all, outcomes...)
		if err != nil {
			return all, err
		}

		boundary := min(current+o.cfg.BatchSize, total)
		o.saveCheckpoint(store.Checkpoint{
			LastProcessed: boundary,
			Completed:     boundary,
			Total:         total,
		})

		if boundary < total && o.cfg.BatchPause > 0 {
			o.logger.Info("pausing before next batch", zap.Duration("pause", o.cfg.BatchPause))
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(o.cfg.BatchPause):
			}
		}
	}
	return all, nil
}

// RunBatch processes the window [startOrdinal, startOrdinal+maxCount)
// clipped to the record list. Ordinals with an existing artifact are
// skipped; the rest are dispatched to the worker pool. Individual failures
// are recorded and never abort the batch. An empty window is a no-op.
func (o *Orchestrator) RunBatch(ctx context.Context, records []locator.Record, startOrdinal, maxCount int) ([]Outcome, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if startOrdinal < 0 {
		startOrdinal = 0
	}
	end := min(startOrdinal+maxCount, len(records))
	if startOrdinal >= end {
		return nil, nil
	}

	// processed marks window ordinals that need no further work: artifacts
	// from an earlier run count immediately, fetched ordinals as they land.
	processed := make([]bool, end-startOrdinal)
	pending := make([]locator.Record, 0, end-startOrdinal)
	for i, rec := range records[startOrdinal:end] {
		if o.artifacts.Exists(rec.Ordinal) {
			processed[i] = true
			continue
		}
		pending = append(pending, rec)
	}
	if skipped := (end - startOrdinal) - len(pending); skipped > 0 {
		o.logger.Info("skipping already downloaded articles", zap.Int("skipped", skipped))
	}
	if len(pending) == 0 {
		return nil, nil
	}

	o.logger.Info("starting batch",
		zap.Int("window_start", startOrdinal),
		zap.Int("window_end", end),
		zap.Int("pending", len(pending)),
	)

	var (
		mu        sync.Mutex
		completed int
		prefix    = startOrdinal
		outcomes  = make([]Outcome, 0, len(pending))
	)
	totalPending := len(pending)

	// contiguousPrefix advances past every processed ordinal from the
	// window start. Completions land out of order under the pool, so the
	// resume index must never move past an ordinal still in flight: a
	// checkpoint that did would make a crashed run skip it forever.
	// Callers must hold mu.
	contiguousPrefix := func() int {
		for prefix < end && processed[prefix-startOrdinal] {
			prefix++
		}
		return prefix
	}

	jobs := make(chan locator.Record)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				out := o.fetchOne(ctx, rec)

				// The completion counter and checkpoint file are the only
				// state shared across workers; both live under this lock.
				mu.Lock()
				completed++
				processed[out.Ordinal-startOrdinal] = true
				outcomes = append(outcomes, out)
				if completed%o.cfg.CheckpointEvery == 0 || completed == totalPending {
					o.saveCheckpoint(store.Checkpoint{
						LastProcessed: contiguousPrefix(),
						Completed:     startOrdinal + completed,
						Total:         len(records),
					})
				}
				mu.Unlock()

				if out.Succeeded {
					o.logger.Info("downloaded article",
						zap.Int("ordinal", out.Ordinal),
						zap.Int("attempts", out.Attempts),
					)
				} else {
					o.logger.Warn("article download failed",
						zap.Int("ordinal", out.Ordinal),
						zap.Int("attempts", out.Attempts),
						zap.String("error", out.Err),
					)
				}
			}
		}()
	}

feed:
	for _, rec := range pending {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- rec:
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Ordinal < outcomes[j].Ordinal })
	return outcomes, ctx.Err()
}

// fetchOne runs the retry loop for a single locator and persists either
// the artifact or a terminal error record.
func (o *Orchestrator) fetchOne(ctx context.Context, rec locator.Record) Outcome {
	var lastErr error
	attempt := 0
	for {
		attempt++
		body, err := o.fetcher.Fetch(ctx, rec.URL)
		if err == nil {
			if putErr := o.artifacts.Put(rec.Ordinal, body); putErr != nil {
				lastErr = putErr
			} else {
				return Outcome{Ordinal: rec.Ordinal, Succeeded: true, Attempts: attempt}
			}
		} else {
			lastErr = err
		}

		if !o.retry.ShouldRetry(lastErr, attempt) {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(o.retry.Backoff(attempt)):
			continue
		}
		break
	}

	if err := o.artifacts.PutError(rec.Ordinal, rec.URL, lastErr.Error()); err != nil {
		o.logger.Error("write error artifact failed",
			zap.Int("ordinal", rec.Ordinal),
			zap.Error(err),
		)
	}
	return Outcome{Ordinal: rec.Ordinal, Succeeded: false, Attempts: attempt, Err: lastErr.Error()}
}

func (o *Orchestrator) saveCheckpoint(cp store.Checkpoint) {
	if o.checkpoint == nil {
		return
	}
	if err := o.checkpoint.Save(cp); err != nil {
		o.logger.Error("save checkpoint failed", zap.Error(err))
	}
}
