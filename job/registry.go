package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind identifies a class of long-running operation.
type Kind string

const (
	KindSync   Kind = "sync"
	KindVerify Kind = "verify"
	KindEnrich Kind = "enrich"
	KindImport Kind = "import"
)

// Status is the terminal state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

var ErrJobRunning = fmt.Errorf("a job with the same scope is already running")

// Report summarizes a finished job. Per-item failures are aggregated as
// counts so the report stays small enough to ship over any surface.
type Report struct {
	ID         string
	Kind       Kind
	Scope      string
	Status     Status
	ItemErrors int
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Handle is a live job owned by the registry. Progress delivers updates
// until the job terminates; Done is closed after the final report is set.
type Handle struct {
	ID    string
	Kind  Kind
	Scope string

	cancel context.CancelFunc
	sink   *channelSink
	done   chan struct{}

	mu         sync.Mutex
	itemErrors int
	report     Report
}

// Progress returns the job's progress channel. It is closed on termination.
func (h *Handle) Progress() <-chan Progress {
	return h.sink.ch
}

// Done is closed once the job has a final report.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Report returns the final report. Valid only after Done is closed.
func (h *Handle) Report() Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report
}

// AddItemError counts a transient per-item failure without stopping the job.
func (h *Handle) AddItemError() {
	h.mu.Lock()
	h.itemErrors++
	h.mu.Unlock()
}

// Registry tracks active jobs keyed by (kind, scope) and owns their
// cancellation. One job per key may run at a time.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Handle
	logger zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		active: make(map[string]*Handle),
		logger: logger,
	}
}

func key(kind Kind, scope string) string {
	return string(kind) + "/" + scope
}

// Func is the body of a job. It must check ctx at least once per processed
// item and return ctx.Err() (or nil) when cancelled.
type Func func(ctx context.Context, h *Handle, sink Sink) error

// Start launches fn on its own goroutine under a fresh cancellable context
// derived from ctx. It fails fast with ErrJobRunning if a job with the same
// kind and scope is still active.
func (r *Registry) Start(ctx context.Context, kind Kind, scope string, fn Func) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(kind, scope)
	if _, ok := r.active[k]; ok {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, k)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ID:     uuid.NewString(),
		Kind:   kind,
		Scope:  scope,
		cancel: cancel,
		sink:   newChannelSink(),
		done:   make(chan struct{}),
	}
	r.active[k] = h

	logger := r.logger.With().
		Str("job_id", h.ID).
		Str("kind", string(kind)).
		Str("scope", scope).
		Logger()
	logger.Info().Msg("job started")

	started := time.Now().UTC()
	go func() {
		err := fn(jobCtx, h, h.sink)
		wasCancelled := jobCtx.Err() != nil
		cancel()

		status := StatusCompleted
		errMsg := ""
		switch {
		case wasCancelled && (err == nil || errors.Is(err, context.Canceled)):
			status = StatusCancelled
		case err != nil:
			status = StatusFailed
			errMsg = err.Error()
		}

		h.mu.Lock()
		h.report = Report{
			ID:         h.ID,
			Kind:       kind,
			Scope:      scope,
			Status:     status,
			ItemErrors: h.itemErrors,
			Err:        errMsg,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}
		h.mu.Unlock()

		r.mu.Lock()
		delete(r.active, k)
		r.mu.Unlock()

		h.sink.close()
		close(h.done)

		switch status {
		case StatusFailed:
			logger.Error().Str("error", errMsg).Msg("job failed")
		case StatusCancelled:
			logger.Info().Msg("job cancelled")
		default:
			logger.Info().Int("item_errors", h.itemErrors).Msg("job completed")
		}
	}()

	return h, nil
}

// Cancel requests cooperative cancellation of the job with the given kind
// and scope. It reports whether such a job was active.
func (r *Registry) Cancel(kind Kind, scope string) bool {
	r.mu.Lock()
	h, ok := r.active[key(kind, scope)]
	r.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	return true
}

// Running reports whether a job with the given kind and scope is active.
func (r *Registry) Running(kind Kind, scope string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key(kind, scope)]
	return ok
}

// Wait blocks until the job terminates and returns its report.
func Wait(h *Handle) Report {
	<-h.Done()
	return h.Report()
}
