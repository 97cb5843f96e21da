// Package dataset turns a directory of raw artifacts into one normalized,
// ordered table and writes it out in the configured format.
package dataset

import (
	"context"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pressharvest/internal/locator"
	"pressharvest/internal/normalize"
	"pressharvest/internal/store"
)

const defaultParallelism = 8

// Assembler reads every stored artifact, normalizes it, and joins manifest
// provenance by ordinal.
type Assembler struct {
	artifacts   *store.ArtifactStore
	logger      *zap.Logger
	parallelism int
}

// NewAssembler returns an Assembler over the given artifact store.
func NewAssembler(artifacts *store.ArtifactStore, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		artifacts:   artifacts,
		logger:      logger,
		parallelism: defaultParallelism,
	}
}

// Assemble normalizes all artifacts in parallel and returns records sorted
// by ordinal. An unreadable artifact is logged and skipped; one corrupt
// file never aborts the dataset. No artifacts yields an empty dataset, not
// an error.
func (a *Assembler) Assemble(ctx context.Context, manifest map[int]locator.Record) ([]normalize.Record, error) {
	artifacts, err := a.artifacts.List()
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return []normalize.Record{}, nil
	}

	results := make([]*normalize.Record, len(artifacts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, art := range artifacts {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			raw, err := os.ReadFile(art.Path)
			if err != nil {
				a.logger.Warn("skipping unreadable artifact",
					zap.String("path", art.Path),
					zap.Error(err),
				)
				return nil
			}

			in := normalize.Input{
				Ordinal:  art.Ordinal,
				HTMLPath: art.Path,
				ModTime:  art.ModTime,
			}
			if m, ok := manifest[art.Ordinal]; ok {
				in.DocKey = m.Key
				in.URL = m.URL
			}

			rec := normalize.Normalize(string(raw), in)
			results[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// List() is ordinal-sorted, so compacting preserves order.
	records := make([]normalize.Record, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	a.logger.Info("dataset assembled",
		zap.Int("artifacts", len(artifacts)),
		zap.Int("records", len(records)),
	)
	return records, nil
}
