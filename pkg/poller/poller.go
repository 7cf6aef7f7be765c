// Package poller is the client-side companion of the grouping job API:
// it polls a job's status endpoint on a fixed interval, distinguishes
// transport failures from job failures, and times out its own banner
// state unless the caller interacts with it.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// JobStatus is the wire shape of the job document the poller consumes.
// Unknown fields are ignored so the server can grow its document.
type JobStatus struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Progress     int            `json:"progress"`
	CurrentStage string         `json:"current_stage"`
	Stages       []JobStage     `json:"stages,omitempty"`
	Error        string         `json:"error,omitempty"`
	Result       *JobResult     `json:"result,omitempty"`
	StageErrors  map[string]any `json:"stage_errors,omitempty"`
}

// JobStage is one entry of the server's per-stage breakdown, rendered
// verbatim by progress UIs.
type JobStage struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

type JobResult struct {
	Groups         []JobGroup `json:"groups,omitempty"`
	TotalGenerated int        `json:"total_generated"`
	TotalUnique    int        `json:"total_unique"`
	TotalSaved     int        `json:"total_saved"`
	Message        string     `json:"message,omitempty"`
}

// JobGroup is the subset of a saved group that result banners show.
type JobGroup struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	ContactIDs  []string `json:"contact_ids,omitempty"`
}

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Fetcher retrieves the current status of one job.
type Fetcher interface {
	Fetch(ctx context.Context, jobID string) (*JobStatus, error)
}

// HTTPFetcher fetches job status over the REST API.
type HTTPFetcher struct {
	BaseURL string
	UserID  string
	Client  *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/v1/ai/grouping/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-User-ID", f.UserID)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("job status fetch: %s: %s", resp.Status, body)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Config tunes the polling loop. Zero values take the defaults.
type Config struct {
	Interval              time.Duration
	MaxTransportFailures  int
	CompletedDismissAfter time.Duration
	FailedDismissAfter    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.MaxTransportFailures <= 0 {
		c.MaxTransportFailures = 5
	}
	if c.CompletedDismissAfter <= 0 {
		c.CompletedDismissAfter = 30 * time.Second
	}
	if c.FailedDismissAfter <= 0 {
		c.FailedDismissAfter = 10 * time.Second
	}
	return c
}

// Callbacks receive lifecycle events. Progress reports every observed
// update verbatim; there is no smoothing or interpolation.
type Callbacks struct {
	OnProgress        func(status *JobStatus)
	OnCompleted       func(status *JobStatus)
	OnFailed          func(status *JobStatus)
	OnConnectionError func(err error)
	OnDismiss         func()
}

// Poller watches one job until it reaches a terminal state or the
// transport fails too many consecutive times.
type Poller struct {
	fetcher Fetcher
	cfg     Config
	cb      Callbacks

	mu        sync.Mutex
	acted     bool
	dismissed bool
	done      chan struct{}
	doneOnce  sync.Once
}

func New(fetcher Fetcher, cfg Config, cb Callbacks) *Poller {
	return &Poller{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		cb:      cb,
		done:    make(chan struct{}),
	}
}

// Watch polls until the job finishes, the transport failure bound is
// hit, or ctx is canceled. It blocks; run it on its own goroutine when
// the caller has other work.
func (p *Poller) Watch(ctx context.Context, jobID string) error {
	defer p.finish()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	transportFailures := 0
	for {
		status, err := p.fetcher.Fetch(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			transportFailures++
			if transportFailures >= p.cfg.MaxTransportFailures {
				connErr := fmt.Errorf("lost connection after %d attempts: %w", transportFailures, err)
				if p.cb.OnConnectionError != nil {
					p.cb.OnConnectionError(connErr)
				}
				return connErr
			}
		} else {
			transportFailures = 0
			if p.cb.OnProgress != nil {
				p.cb.OnProgress(status)
			}

			switch status.Status {
			case statusCompleted:
				if p.cb.OnCompleted != nil {
					p.cb.OnCompleted(status)
				}
				p.scheduleDismiss(ctx, p.cfg.CompletedDismissAfter)
				return nil
			case statusFailed:
				if p.cb.OnFailed != nil {
					p.cb.OnFailed(status)
				}
				p.scheduleDismiss(ctx, p.cfg.FailedDismissAfter)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ViewResults marks the terminal banner as interacted with, canceling
// the pending auto-dismiss.
func (p *Poller) ViewResults() {
	p.mu.Lock()
	p.acted = true
	p.mu.Unlock()
}

// Dismiss hides the banner immediately.
func (p *Poller) Dismiss() {
	p.mu.Lock()
	already := p.dismissed
	p.acted = true
	p.dismissed = true
	p.mu.Unlock()

	if !already && p.cb.OnDismiss != nil {
		p.cb.OnDismiss()
	}
}

// Done is closed once Watch returns.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) finish() {
	p.doneOnce.Do(func() { close(p.done) })
}

// scheduleDismiss auto-dismisses the terminal banner after the grace
// period unless the user viewed or dismissed it first.
func (p *Poller) scheduleDismiss(ctx context.Context, after time.Duration) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(after):
		}

		p.mu.Lock()
		skip := p.acted || p.dismissed
		if !skip {
			p.dismissed = true
		}
		p.mu.Unlock()

		if !skip && p.cb.OnDismiss != nil {
			p.cb.OnDismiss()
		}
	}()
}
