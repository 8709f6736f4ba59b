package realtime

import (
	"context"
	"log/slog"
	"time"
)

// StatsSource produces the statistics snapshot for a publication cycle.
type StatsSource func(ctx context.Context) (any, error)

// StatsPublisher periodically collects statistics and publishes them on
// the system topic. A failing collection cycle is logged and skipped;
// the ticker keeps running.
type StatsPublisher struct {
	notifier *Notifier
	source   StatsSource
	interval time.Duration
	logger   *slog.Logger
}

func NewStatsPublisher(notifier *Notifier, source StatsSource, interval time.Duration, logger *slog.Logger) *StatsPublisher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatsPublisher{
		notifier: notifier,
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (p *StatsPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("stats publisher started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stats publisher stopped")
			return
		case <-ticker.C:
			stats, err := p.source(ctx)
			if err != nil {
				p.logger.Error("failed to collect stats", "error", err)
				continue
			}
			p.notifier.NotifySystemStats(stats)
		}
	}
}
