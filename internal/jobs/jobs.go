// Package jobs runs the gateway's periodic housekeeping on a gocron
// scheduler: idle wizards are closed, journal entries stuck in PENDING are
// marked abandoned, and the in-memory session fallback is purged.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/wellness-admin/internal/metrics"
)

// Sweeper is a wizard registry.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
	Len() int
}

// StaleJournal marks entries that never finished.
type StaleJournal interface {
	AbandonStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Purger drops expired sessions.
type Purger interface {
	Purge() int
}

// Janitor holds the housekeeping tasks. Nil Journal or Sessions skip the
// matching task.
type Janitor struct {
	Wizards    map[string]Sweeper
	Journal    StaleJournal
	Sessions   Purger
	IdleTTL    time.Duration
	StaleAfter time.Duration
	Logger     *slog.Logger

	now func() time.Time
}

func (j *Janitor) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func (j *Janitor) clock() time.Time {
	if j.now == nil {
		return time.Now()
	}
	return j.now()
}

// SweepWizards closes idle or finished wizards and refreshes the gauge.
func (j *Janitor) SweepWizards() {
	for kind, r := range j.Wizards {
		if n := r.Sweep(j.IdleTTL); n > 0 {
			j.logger().Info("wizards swept", "wizard", kind, "count", n)
		}
		metrics.SetOpenWizards(kind, r.Len())
	}
}

// AbandonStale flips PENDING entries older than StaleAfter to ABANDONED.
func (j *Janitor) AbandonStale(ctx context.Context) {
	if j.Journal == nil {
		return
	}
	n, err := j.Journal.AbandonStale(ctx, j.clock().Add(-j.StaleAfter))
	if err != nil {
		j.logger().Error("journal sweep failed", "err", err)
		return
	}
	if n > 0 {
		j.logger().Warn("journal entries abandoned", "count", n)
	}
}

// PurgeSessions drops expired in-memory sessions.
func (j *Janitor) PurgeSessions() {
	if j.Sessions == nil {
		return
	}
	if n := j.Sessions.Purge(); n > 0 {
		j.logger().Debug("sessions purged", "count", n)
	}
}

// Start schedules every task at the given interval and starts the
// scheduler. Callers Shutdown it on exit.
func Start(ctx context.Context, j *Janitor, every time.Duration) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	tasks := []struct {
		name string
		task gocron.Task
	}{
		{"wizard-sweep", gocron.NewTask(j.SweepWizards)},
		{"journal-abandon", gocron.NewTask(j.AbandonStale, ctx)},
		{"session-purge", gocron.NewTask(j.PurgeSessions)},
	}
	for _, t := range tasks {
		job, err := s.NewJob(
			gocron.DurationJob(every),
			t.task,
			gocron.WithName(t.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, err
		}
		j.logger().Debug("job scheduled", "name", job.Name(), "id", job.ID().String(), "every", every)
	}
	s.Start()
	return s, nil
}
