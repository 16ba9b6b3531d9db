package worker

import (
	"context"
	"log/slog"
	"time"
)

// RecordStore deletes invocation records older than a cutoff.
type RecordStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes old invocation records based on a retention period.
type Pruner struct {
	retention time.Duration
	store     RecordStore
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, store RecordStore) *Pruner {
	return &Pruner{
		retention: retention,
		store:     store,
		now:       time.Now,
	}
}

// Interval is how often Start prunes: a tenth of the retention, between one
// minute and one hour.
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, time.Hour)
	return max(interval, time.Minute)
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune deletes records older than the retention period once.
func (p *Pruner) Prune(ctx context.Context) {
	cutoff := p.now().Add(-p.retention)

	n, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune invocation records", "cutoff", cutoff, "error", err)
		return
	}
	if n > 0 {
		slog.Info("Pruned invocation records", "deleted", n, "cutoff", cutoff)
	}
}
