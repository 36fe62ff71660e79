package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultPruneInterval = time.Hour

// Pruner trims old journal rows for one instance.
type Pruner interface {
	Prune(ctx context.Context, name string, keep int) (int64, error)
}

// RunPruner trims the journal immediately and then at a fixed cadence until
// ctx is cancelled. Failures are logged; it only returns on cancellation.
func RunPruner(ctx context.Context, p Pruner, name string, keep int, interval time.Duration, logger *zap.Logger) error {
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		prune(ctx, p, name, keep, logger)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func prune(ctx context.Context, p Pruner, name string, keep int, logger *zap.Logger) {
	removed, err := p.Prune(ctx, name, keep)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("journal prune failed", zap.Error(err))
		}
		return
	}
	if removed > 0 {
		logger.Debug("journal pruned", zap.Int64("removed", removed), zap.Int("kept", keep))
	}
}
