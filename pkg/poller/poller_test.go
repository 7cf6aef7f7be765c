package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptFetcher replays a fixed sequence of results, sticking on the
// last one.
type scriptFetcher struct {
	mu     sync.Mutex
	calls  int
	script []func() (*JobStatus, error)
}

func (f *scriptFetcher) Fetch(ctx context.Context, jobID string) (*JobStatus, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	return f.script[idx]()
}

func (f *scriptFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func status(state string, progress int) func() (*JobStatus, error) {
	return func() (*JobStatus, error) {
		return &JobStatus{ID: "j1", Status: state, Progress: progress}, nil
	}
}

func transportErr() func() (*JobStatus, error) {
	return func() (*JobStatus, error) {
		return nil, errors.New("connection refused")
	}
}

func fastConfig() Config {
	return Config{
		Interval:              time.Millisecond,
		CompletedDismissAfter: 20 * time.Millisecond,
		FailedDismissAfter:    10 * time.Millisecond,
	}
}

func TestWatchReportsProgressAndCompletion(t *testing.T) {
	fetcher := &scriptFetcher{script: []func() (*JobStatus, error){
		status("processing", 15),
		status("processing", 85),
		status("completed", 100),
	}}

	var progress []int
	var completed *JobStatus
	p := New(fetcher, fastConfig(), Callbacks{
		OnProgress:  func(s *JobStatus) { progress = append(progress, s.Progress) },
		OnCompleted: func(s *JobStatus) { completed = s },
	})

	err := p.Watch(context.Background(), "j1")
	require.NoError(t, err)

	assert.Equal(t, []int{15, 85, 100}, progress)
	require.NotNil(t, completed)
	assert.Equal(t, "completed", completed.Status)
	assert.Equal(t, 3, fetcher.Calls())

	select {
	case <-p.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestCompletionCarriesStagesAndGroups(t *testing.T) {
	final := &JobStatus{
		ID:       "j1",
		Status:   "completed",
		Progress: 100,
		Stages: []JobStage{
			{Name: "fetching_contacts", Status: "completed", Progress: 100},
			{Name: "ai_analysis", Status: "completed", Progress: 100},
			{Name: "deduplicating_groups", Status: "completed", Progress: 100},
			{Name: "saving_results", Status: "completed", Progress: 100},
		},
		Result: &JobResult{
			Groups: []JobGroup{
				{ID: "101", Name: "Acme Corp", Type: "ai_company", ContactIDs: []string{"1", "2"}},
			},
			TotalGenerated: 1,
			TotalUnique:    1,
			TotalSaved:     1,
		},
	}
	fetcher := &scriptFetcher{script: []func() (*JobStatus, error){
		func() (*JobStatus, error) { return final, nil },
	}}

	var completed *JobStatus
	p := New(fetcher, fastConfig(), Callbacks{
		OnCompleted: func(s *JobStatus) { completed = s },
	})

	require.NoError(t, p.Watch(context.Background(), "j1"))

	require.NotNil(t, completed)
	require.Len(t, completed.Stages, 4)
	assert.Equal(t, "saving_results", completed.Stages[3].Name)
	assert.Equal(t, "completed", completed.Stages[3].Status)
	require.NotNil(t, completed.Result)
	require.Len(t, completed.Result.Groups, 1)
	assert.Equal(t, "Acme Corp", completed.Result.Groups[0].Name)
	assert.Equal(t, []string{"1", "2"}, completed.Result.Groups[0].ContactIDs)
}

func TestWatchHaltsAfterConsecutiveTransportFailures(t *testing.T) {
	fetcher := &scriptFetcher{script: []func() (*JobStatus, error){transportErr()}}

	var connErr error
	p := New(fetcher, fastConfig(), Callbacks{
		OnConnectionError: func(err error) { connErr = err },
	})

	err := p.Watch(context.Background(), "j1")
	require.Error(t, err)
	assert.Equal(t, 5, fetcher.Calls())
	require.NotNil(t, connErr)
	assert.Contains(t, connErr.Error(), "after 5 attempts")
}

func TestTransportFailureCounterResetsOnSuccess(t *testing.T) {
	// Four failures, one success, then four more failures and a
	// terminal status: the run must survive both bursts.
	script := []func() (*JobStatus, error){
		transportErr(), transportErr(), transportErr(), transportErr(),
		status("processing", 50),
		transportErr(), transportErr(), transportErr(), transportErr(),
		status("completed", 100),
	}
	fetcher := &scriptFetcher{script: script}

	var completed bool
	p := New(fetcher, fastConfig(), Callbacks{
		OnCompleted: func(*JobStatus) { completed = true },
	})

	err := p.Watch(context.Background(), "j1")
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, len(script), fetcher.Calls())
}

func TestJobFailureIsNotTransportFailure(t *testing.T) {
	fetcher := &scriptFetcher{script: []func() (*JobStatus, error){
		status("failed", 15),
	}}

	var failed *JobStatus
	var connErr error
	p := New(fetcher, fastConfig(), Callbacks{
		OnFailed:          func(s *JobStatus) { failed = s },
		OnConnectionError: func(err error) { connErr = err },
	})

	err := p.Watch(context.Background(), "j1")
	require.NoError(t, err)
	require.NotNil(t, failed)
	assert.Nil(t, connErr)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestAutoDismissAfterCompletion(t *testing.T) {
	fetcher := &scriptFetcher{script: []func() (*JobStatus, error){
		status("completed", 100),
	}}

	dismissed := make(chan struct{})
	p := New(fetcher, fastConfig(), Callbacks{
		OnDismiss: func() { close(dismissed) },
	})

	require.NoError(t, p.Watch(context.Background(), "j1"))

	select {
	case <-dismissed:
	case <-time.After(time.Second):
		t.Fatal("banner never auto-dismissed")
	}
}

func TestViewResultsCancelsAutoDismiss(t *testing.T) {
	fetcher := &scriptFetcher{script: []func() (*JobStatus, error){
		status("completed", 100),
	}}

	var dismissals int
	var mu sync.Mutex
	p := New(fetcher, fastConfig(), Callbacks{
		OnDismiss: func() {
			mu.Lock()
			dismissals++
			mu.Unlock()
		},
	})

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.ViewResults()
	}()

	require.NoError(t, p.Watch(context.Background(), "j1"))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, dismissals)
}

func TestExplicitDismissFiresOnce(t *testing.T) {
	fetcher := &scriptFetcher{script: []func() (*JobStatus, error){
		status("completed", 100),
	}}

	var dismissals int
	var mu sync.Mutex
	p := New(fetcher, fastConfig(), Callbacks{
		OnDismiss: func() {
			mu.Lock()
			dismissals++
			mu.Unlock()
		},
	})

	require.NoError(t, p.Watch(context.Background(), "j1"))
	p.Dismiss()
	p.Dismiss()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, dismissals)
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	fetcher := &scriptFetcher{script: []func() (*JobStatus, error){
		status("processing", 10),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	p := New(fetcher, fastConfig(), Callbacks{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Watch(ctx, "j1")
	assert.ErrorIs(t, err, context.Canceled)
}
