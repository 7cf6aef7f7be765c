package taskrunner

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Runner owns the background goroutines spawned by request handlers so
// that process shutdown can wait for in-flight work instead of killing
// it mid-write.
type Runner struct {
	log *zap.Logger
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(log *zap.Logger) *Runner {
	return &Runner{log: log.Named("taskrunner")}
}

// Go runs fn on its own goroutine. A panic in fn is recovered and
// logged so one broken task never takes the process down. Once the
// runner is shut down, new tasks are rejected.
func (r *Runner) Go(name string, fn func()) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("task rejected after shutdown", zap.String("task", name))
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("task panicked",
					zap.String("task", name),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
			}
		}()
		fn()
	}()
	return true
}

// Shutdown stops accepting tasks and waits for running ones to finish,
// or for ctx to expire, whichever comes first.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
