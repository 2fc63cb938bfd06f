package upload

import (
	"context"
	"errors"
	"time"

	"admin-backend/internal/logging"
)

// SweeperConfig controls the stale-session sweeper.
type SweeperConfig struct {
	Enabled   bool
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// StartSweeper periodically aborts sessions that have not been touched for
// MaxAge. It blocks until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, cfg SweeperConfig) {
	if !cfg.Enabled {
		logging.Info("sweeper disabled", nil)
		return
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	logging.Info("sweeper starting", logging.Fields{
		"interval": cfg.Interval.String(),
		"max_age":  cfg.MaxAge.String(),
	})

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	m.sweepOnce(ctx, cfg)

	for {
		select {
		case <-ctx.Done():
			logging.Info("sweeper shutting down", nil)
			return
		case <-ticker.C:
			m.sweepOnce(ctx, cfg)
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context, cfg SweeperConfig) {
	start := time.Now()
	n, err := m.SweepStale(ctx, cfg.MaxAge, cfg.BatchSize)
	if err != nil {
		logging.Error("sweep failed", nil, err)
		return
	}
	logging.Info("sweep complete", logging.Fields{
		"aborted":     n,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// SweepStale aborts up to limit sessions last updated more than maxAge ago
// and returns how many sessions were dropped.
func (m *Manager) SweepStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	cutoff := m.now().UTC().Add(-maxAge)

	stale, err := m.store.ListStaleUploads(ctx, cutoff, limit)
	if err != nil {
		return 0, storeError("sweep", "", err)
	}

	dropped := 0
	for _, s := range stale {
		if ctx.Err() != nil {
			return dropped, ctx.Err()
		}

		err := m.AbortUpload(ctx, s.UploadID)
		switch {
		case err == nil:
			dropped++
		case errors.Is(err, ErrObjectStore):
			// Local row is gone; the remote part is left to the bucket's
			// incomplete-upload expiry.
			dropped++
		case errors.Is(err, ErrNotFound):
		default:
			logging.Error("sweep abort failed", logging.Fields{"upload_id": s.UploadID}, err)
		}
	}
	return dropped, nil
}
