package trigger

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Source produces signals until its context is canceled.
type Source interface {
	Name() string
	Listen(ctx context.Context, offer func(Signal)) error
}

// Listener feeds every source into one queue drained by a single runner,
// so at most one run is active at a time.
type Listener struct {
	queue   *Queue
	run     Runner
	sources []Source
}

// NewListener creates a listener.
func NewListener(run Runner, sources ...Source) *Listener {
	return &Listener{
		queue:   NewQueue(),
		run:     run,
		sources: sources,
	}
}

// Offer queues a signal directly, e.g. for a run at startup.
func (l *Listener) Offer(sig Signal) bool {
	return l.queue.Offer(sig)
}

// Run blocks until ctx is canceled or a source fails. A failing source
// stops the listener and its error is returned.
func (l *Listener) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return l.queue.Run(gctx, l.run)
	})
	for _, src := range l.sources {
		g.Go(func() error {
			return src.Listen(gctx, func(sig Signal) { l.queue.Offer(sig) })
		})
	}

	return g.Wait()
}
