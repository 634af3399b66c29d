// Package poller watches a project's job status until it reaches a terminal state.
package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"learnflow/internal/models"

	log "github.com/sirupsen/logrus"
)

const DefaultInterval = 1200 * time.Millisecond

// Fetcher reads the current status document of a project.
type Fetcher interface {
	FetchStatus(ctx context.Context, projectID string) (models.JobStatus, error)
}

// PollError reports that the status could not be fetched or decoded. It is
// distinct from a job that reported status=error.
type PollError struct {
	ProjectID string
	Err       error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll status of %s: %v", e.ProjectID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// Outcome is handed to onTerminal. Err is a *PollError when polling itself
// failed; otherwise Status holds the complete or error document.
type Outcome struct {
	Status models.JobStatus
	Err    error
}

type Poller struct {
	Fetcher  Fetcher
	Interval time.Duration

	mu      sync.Mutex
	current *Handle
}

func New(f Fetcher, interval time.Duration) *Poller {
	return &Poller{Fetcher: f, Interval: interval}
}

// Start polls projectID, fetching once immediately and again Interval after each
// fetch settles. Every fetched document goes to onUpdate. On a terminal status or
// a transport failure onTerminal runs once and polling ends. A previous poll
// started by this Poller is cancelled first, and the new poll delivers nothing
// until a callback of the previous one that is already running has returned.
// Start may be called from inside a callback.
func (p *Poller) Start(projectID string, onUpdate func(models.JobStatus), onTerminal func(Outcome)) *Handle {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	prev := p.current
	p.current = h
	p.mu.Unlock()
	if prev != nil {
		prev.Cancel()
		h.prev = prev
	}

	go h.run(ctx, p.Fetcher, projectID, interval, onUpdate, onTerminal)
	return h
}

// Stop stops the active poll, if any, with the guarantees of Handle.Stop.
func (p *Poller) Stop() {
	p.mu.Lock()
	h := p.current
	p.current = nil
	p.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Handle controls one polling loop.
type Handle struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
	mu      sync.Mutex
	done    chan struct{}

	// prev is the superseded handle; only the loop goroutine reads it.
	prev *Handle
}

// Cancel stops the loop without waiting. Results that arrive later are dropped.
// It is safe to call from inside a callback.
func (h *Handle) Cancel() {
	h.stopped.Store(true)
	h.cancel()
}

// Stop cancels the loop and waits for a callback that is already running to
// return. No callback runs after Stop returns. Calling Stop from a callback
// deadlocks; use Cancel there.
func (h *Handle) Stop() {
	h.Cancel()
	h.mu.Lock()
	h.mu.Unlock()
}

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) run(ctx context.Context, f Fetcher, projectID string, interval time.Duration, onUpdate func(models.JobStatus), onTerminal func(Outcome)) {
	defer close(h.done)
	logger := log.WithField("project_id", projectID)
	for {
		st, err := f.FetchStatus(ctx, projectID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.WithError(err).Warn("poller: status fetch failed")
			h.deliver(func() {
				if onTerminal != nil {
					onTerminal(Outcome{Err: &PollError{ProjectID: projectID, Err: err}})
				}
			})
			return
		}
		if !h.deliver(func() {
			if onUpdate != nil {
				onUpdate(st)
			}
		}) {
			return
		}
		if st.Terminal() {
			h.deliver(func() {
				if onTerminal != nil {
					onTerminal(Outcome{Status: st})
				}
			})
			return
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// deliver runs fn unless the handle was stopped. It reports whether fn ran.
func (h *Handle) deliver(fn func()) bool {
	if h.prev != nil {
		h.prev.mu.Lock()
		h.prev.mu.Unlock()
		h.prev = nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped.Load() {
		return false
	}
	fn()
	return true
}
