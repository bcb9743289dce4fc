package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// hook is one registered step. Either side may be nil.
type hook struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

// Lifecycle manages the startup and shutdown of server components such
// as the health checker and the HTTP listener.
type Lifecycle struct {
	mu sync.Mutex

	hooks   []hook
	started int // hooks whose start ran successfully

	running bool
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// OnStart registers a callback to run on startup.
func (l *Lifecycle) OnStart(callback func(context.Context) error) {
	l.add(hook{start: callback})
}

// OnStop registers a callback to run on shutdown.
func (l *Lifecycle) OnStop(callback func(context.Context) error) {
	l.add(hook{stop: callback})
}

// Component is something that can be started and stopped.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RegisterComponent registers a component with the lifecycle. Its Stop
// runs only if its Start succeeded.
func (l *Lifecycle) RegisterComponent(name string, c Component) {
	l.add(hook{name: name, start: c.Start, stop: c.Stop})
}

func (l *Lifecycle) add(h hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h.name == "" {
		h.name = fmt.Sprintf("hook %d", len(l.hooks))
	}
	l.hooks = append(l.hooks, h)
}

// Start runs all start callbacks in registration order. When one fails,
// the stop callbacks of the hooks registered before it run in reverse.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("lifecycle already started")
	}

	for i, h := range l.hooks {
		if h.start == nil {
			continue
		}
		if err := h.start(ctx); err != nil {
			l.rollback(ctx, i)
			return fmt.Errorf("starting %s: %w", h.name, err)
		}
	}

	l.started = len(l.hooks)
	l.running = true
	return nil
}

// rollback stops the hooks before failedAt in reverse order.
func (l *Lifecycle) rollback(ctx context.Context, failedAt int) {
	for j := failedAt - 1; j >= 0; j-- {
		if l.hooks[j].stop == nil {
			continue
		}
		if err := l.hooks[j].stop(ctx); err != nil {
			slog.Warn("lifecycle rollback: stop callback failed",
				"hook", l.hooks[j].name, "error", err)
		}
	}
}

// Stop runs all stop callbacks in reverse order.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}

	var errs []error
	for i := l.started - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.stop == nil {
			continue
		}
		if err := h.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.name, err))
		}
	}

	l.running = false
	l.started = 0

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}

// IsStarted returns whether the lifecycle has been started.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
