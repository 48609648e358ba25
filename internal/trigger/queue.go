// Package trigger turns "data refreshed" signals into sequential pipeline runs.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
)

// Signal is one request to run the pipeline. The payload is not interpreted.
type Signal struct {
	At      time.Time
	Source  string
	Payload string
}

// Runner executes one pipeline run.
type Runner func(ctx context.Context, sig Signal) error

// Queue holds at most one pending signal. Signals offered while one is
// already pending are coalesced into it.
type Queue struct {
	slot chan Signal
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{slot: make(chan Signal, 1)}
}

// Offer enqueues sig unless a signal is already pending. It reports whether
// sig was enqueued.
func (q *Queue) Offer(sig Signal) bool {
	select {
	case q.slot <- sig:
		slog.Debug("Signal queued", "source", sig.Source)
		return true
	default:
		slog.Info("Run already pending, signal coalesced", "source", sig.Source)
		return false
	}
}

// Run executes queued signals one at a time until ctx is canceled. A failed
// run is logged and does not stop the loop.
func (q *Queue) Run(ctx context.Context, run Runner) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-q.slot:
			if ctx.Err() != nil {
				return nil
			}
			slog.Info("Starting run", "source", sig.Source, "received_at", sig.At)
			if err := run(ctx, sig); err != nil {
				common.LogError(err, "Run failed", common.Fields{"source": sig.Source})
			}
		}
	}
}
