package costtracking

import (
	"context"
	"sync"
	"testing"
	"time"

	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pruneRecorder struct {
	costdomain.Service

	mu         sync.Mutex
	calls      int
	keepMonths int
}

func (r *pruneRecorder) PruneLedgers(_ context.Context, keepMonths int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.keepMonths = keepMonths
	return 1, nil
}

func (r *pruneRecorder) snapshot() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.keepMonths
}

func TestRetentionSweepPrunesOnSchedule(t *testing.T) {
	rec := &pruneRecorder{}
	s := &sweeper{
		svc:        rec,
		log:        zap.NewNop(),
		keepMonths: 12,
		interval:   time.Millisecond,
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		s.loop(done)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		calls, _ := rec.snapshot()
		return calls >= 2
	}, time.Second, time.Millisecond, "expected the startup sweep plus at least one tick")

	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop")
	}

	_, keepMonths := rec.snapshot()
	assert.Equal(t, 12, keepMonths)
}
