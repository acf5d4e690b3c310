// Package scheduler runs the engine's jobs on fixed intervals with per-job
// run/error bookkeeping and an operator-facing health snapshot.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
)

// JobFunc is one schedulable unit of work.
type JobFunc func(ctx context.Context) error

// job is the registry entry: schedule state plus health bookkeeping.
type job struct {
	name         string
	fn           JobFunc
	interval     time.Duration
	enabled      bool
	nextRun      time.Time
	lastRun      time.Time
	runCount     int
	errorCount   int
	lastError    string
	lastDuration time.Duration
}

// JobStatus is one job's health snapshot entry.
type JobStatus struct {
	Name          string
	Enabled       bool
	LastRun       time.Time
	NextRun       time.Time
	RunCount      int
	ErrorCount    int
	LastError     string
	LastDurationS float64
}

// Scheduler owns the job registry and the 1-second dispatch loop. Jobs run
// serially, never overlapped; a failing job's next_run_at still advances by
// its interval.
type Scheduler struct {
	mu   sync.Mutex
	jobs []*job
	log  *slog.Logger

	tick time.Duration
}

// New builds an empty Scheduler.
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{log: log, tick: time.Second}
}

// Add registers a job. runOnStartup schedules the first run immediately;
// otherwise the first run happens one interval from now.
func (s *Scheduler) Add(name string, fn JobFunc, interval time.Duration, runOnStartup bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := time.Now().UTC()
	if !runOnStartup {
		next = next.Add(interval)
	}
	s.jobs = append(s.jobs, &job{
		name:     name,
		fn:       fn,
		interval: interval,
		enabled:  true,
		nextRun:  next,
	})
	s.log.Info("scheduler.Add: job registered", "job", name, "interval", interval)
}

// SetEnabled toggles a job by name.
func (s *Scheduler) SetEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.name == name {
			j.enabled = enabled
		}
	}
}

// Run drives the dispatch loop until ctx is cancelled. Each tick, every
// enabled job whose next_run_at has passed runs to completion before the
// next job is considered.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	count := len(s.jobs)
	s.mu.Unlock()
	s.log.Info("scheduler.Run: started", "jobs", count)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler.Run: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// RunOnce runs every enabled job immediately, in registration order,
// regardless of schedule. Used for one-shot invocations.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]*job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, j := range jobs {
		if !j.enabled {
			continue
		}
		s.runJob(ctx, j)
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if j.enabled && !now.Before(j.nextRun) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, j)
	}
}

// runJob executes one job, recording duration and outcome. The next run is
// scheduled one interval out whether the job succeeded or failed.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	s.log.Info("scheduler: job starting", "job", j.name)
	start := time.Now()
	err := j.fn(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	j.lastRun = time.Now().UTC()
	j.nextRun = j.lastRun.Add(j.interval)
	j.lastDuration = elapsed
	if err != nil {
		j.errorCount++
		j.lastError = err.Error()
	} else {
		j.runCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("scheduler: job failed", "job", j.name, "duration", elapsed.Round(time.Millisecond), "err", err)
	} else {
		s.log.Info("scheduler: job completed", "job", j.name, "duration", elapsed.Round(time.Millisecond))
	}
}

// Status returns every job's health snapshot.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobStatus{
			Name:          j.name,
			Enabled:       j.enabled,
			LastRun:       j.lastRun,
			NextRun:       j.nextRun,
			RunCount:      j.runCount,
			ErrorCount:    j.errorCount,
			LastError:     j.lastError,
			LastDurationS: j.lastDuration.Seconds(),
		})
	}
	return out
}

// WriteStatus renders the health snapshot as an operator-facing table,
// typically on SIGHUP or at shutdown.
func (s *Scheduler) WriteStatus(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.Header("Job", "Enabled", "Runs", "Errors", "Last run", "Next run", "Last dur", "Last error")

	for _, st := range s.Status() {
		lastRun := "-"
		if !st.LastRun.IsZero() {
			lastRun = st.LastRun.Format(time.TimeOnly)
		}
		lastErr := st.LastError
		if len(lastErr) > 40 {
			lastErr = lastErr[:37] + "..."
		}
		table.Append(
			st.Name,
			fmt.Sprintf("%t", st.Enabled),
			fmt.Sprintf("%d", st.RunCount),
			fmt.Sprintf("%d", st.ErrorCount),
			lastRun,
			st.NextRun.Format(time.TimeOnly),
			fmt.Sprintf("%.1fs", st.LastDurationS),
			lastErr,
		)
	}
	table.Render()
}
