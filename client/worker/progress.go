package worker

import (
	"fmt"
	"log/slog"
	"time"
)

// progress emits a status event at most once per interval
type progress struct {
	logger   *slog.Logger
	total    int64
	done     int64
	started  time.Time
	last     time.Time
	interval time.Duration
	now      func() time.Time
}

func newProgress(logger *slog.Logger, total int64, interval time.Duration, now func() time.Time) *progress {
	started := now()
	return &progress{
		logger:   logger,
		total:    total,
		started:  started,
		last:     started,
		interval: interval,
		now:      now,
	}
}

func (p *progress) add(n int) {
	p.done += int64(n)
	if p.interval <= 0 {
		return
	}
	now := p.now()
	if now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	p.logger.Info("transfer progress",
		slog.Int64("sent", p.done),
		slog.Int64("size", p.total),
		slog.String("percent", fmt.Sprintf("%.1f", p.percent())),
		slog.String("rate", formatRate(p.rate(now))))
}

func (p *progress) percent() float64 {
	if p.total <= 0 {
		return 100
	}
	return float64(p.done) / float64(p.total) * 100
}

// rate returns average bytes per second since the transfer started
func (p *progress) rate(now time.Time) float64 {
	elapsed := now.Sub(p.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.done) / elapsed
}

func formatRate(bps float64) string {
	return fmt.Sprintf("%.2f MiB/s", bps/(1<<20))
}
