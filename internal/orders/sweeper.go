// Package orders implements the stale pending-order expiry sweep.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sweepCap bounds one sweep so a huge backlog cannot produce an
// unbounded bulk update. The sweep is idempotent at the row level, so
// anything left behind is picked up next cycle.
const sweepCap = 500

var ordersExpired = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "wishlane",
		Subsystem: "orders",
		Name:      "expired_total",
		Help:      "Total pending orders swept to expired",
	},
)

// Config contains sweeper configuration.
type Config struct {
	Timeout time.Duration
}

// DefaultConfig returns default sweeper configuration.
func DefaultConfig() Config {
	return Config{Timeout: 24 * time.Hour}
}

// Summary reports one sweep.
type Summary struct {
	Expired int `json:"expired"`
}

// Sweeper bulk-expires orders that sat unpaid past the timeout.
type Sweeper struct {
	config Config
	repo   Repository
}

// NewSweeper creates an order expiry sweeper.
func NewSweeper(config Config, repo Repository) *Sweeper {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Sweeper{config: config, repo: repo}
}

// Run executes one sweep: select up to sweepCap stale pending orders
// and bulk-transition them to expired in one operation. Orders in any
// other status are never touched.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	cutoff := now.Add(-s.config.Timeout)

	ids, err := s.repo.SelectStalePending(ctx, cutoff, sweepCap)
	if err != nil {
		return summary, fmt.Errorf("select stale orders: %w", err)
	}

	if len(ids) == 0 {
		return summary, nil
	}

	expired, err := s.repo.BulkExpire(ctx, ids)
	if err != nil {
		return summary, fmt.Errorf("bulk expire orders: %w", err)
	}

	summary.Expired = int(expired)
	ordersExpired.Add(float64(expired))

	slog.Info("expired stale orders",
		"count", expired,
		"cutoff", cutoff,
	)

	return summary, nil
}
