package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wellness-admin/internal/metrics"
)

type fakeRegistry struct {
	idle  time.Duration
	left  int
	swept int
}

func (f *fakeRegistry) Sweep(maxIdle time.Duration) int { f.idle = maxIdle; return f.swept }
func (f *fakeRegistry) Len() int                        { return f.left }

type fakeJournal struct{ cutoff time.Time }

func (f *fakeJournal) AbandonStale(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 2, nil
}

type fakePurger struct{ calls atomic.Int32 }

func (f *fakePurger) Purge() int { f.calls.Add(1); return 1 }

func TestSweepWizardsUpdatesGauge(t *testing.T) {
	r := &fakeRegistry{left: 3, swept: 1}
	j := &Janitor{Wizards: map[string]Sweeper{"test_issuance": r}, IdleTTL: 30 * time.Minute}
	j.SweepWizards()

	assert.Equal(t, 30*time.Minute, r.idle)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.OpenWizards.WithLabelValues("test_issuance")))
}

func TestAbandonStaleUsesCutoff(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	fj := &fakeJournal{}
	j := &Janitor{Journal: fj, StaleAfter: 10 * time.Minute, now: func() time.Time { return now }}
	j.AbandonStale(context.Background())
	assert.Equal(t, now.Add(-10*time.Minute), fj.cutoff)
}

func TestNilTasksAreSkipped(t *testing.T) {
	j := &Janitor{}
	assert.NotPanics(t, func() {
		j.AbandonStale(context.Background())
		j.PurgeSessions()
		j.SweepWizards()
	})
}

func TestStartRunsJobs(t *testing.T) {
	p := &fakePurger{}
	j := &Janitor{Sessions: p}
	s, err := Start(context.Background(), j, 10*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown() }()

	assert.Len(t, s.Jobs(), 3)
	assert.Eventually(t, func() bool { return p.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
}
