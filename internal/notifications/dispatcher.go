package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/userhub/userhub/internal/observability"
)

// Dispatcher fires notifications off the request path. There is no return
// channel into the request/response cycle: a send failure is logged and
// counted, never surfaced to the HTTP caller.
type Dispatcher struct {
	notifier Notifier
	log      *slog.Logger
	metrics  *observability.Prom

	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(notifier Notifier, log *slog.Logger, metrics *observability.Prom) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		log:      log,
		metrics:  metrics,
		timeout:  5 * time.Second,
	}
}

func (d *Dispatcher) DispatchWelcome(input SendWelcomeInput) {
	d.dispatch("welcome", func(ctx context.Context) error {
		return d.notifier.SendWelcome(ctx, input)
	})
}

func (d *Dispatcher) DispatchFarewell(input SendFarewellInput) {
	d.dispatch("farewell", func(ctx context.Context) error {
		return d.notifier.SendFarewell(ctx, input)
	})
}

func (d *Dispatcher) dispatch(kind string, fn func(context.Context) error) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		// Deliberately not the request context: the request may finish
		// before delivery does.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := fn(ctx)

		result := "ok"

		if err != nil {
			result = "error"
			d.log.Warn("notification dispatch failed", "kind", kind, "err", err)
		}

		if d.metrics != nil {
			d.metrics.NotifyTotal.WithLabelValues(kind, result).Inc()
		}
	}()
}

// Drain waits for in-flight notifications, up to the given grace period.
// Used on shutdown only.
func (d *Dispatcher) Drain(grace time.Duration) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(grace):
		d.log.Warn("notification drain timed out")
	}
}
