// Package cleanup runs background maintenance: periodic sweeps of in-memory
// state and a nightly retention pass over the persistent store.
package cleanup

import (
	"context"
	"sync"
	"time"

	"warmdelights/internal/logger"
)

const (
	cleanupHour = 2 // 2 AM
)

// Task is one maintenance job. Run reports how many items it handled.
type Task struct {
	Name string
	// Every runs the task on a ticker. Zero means nightly at cleanupHour.
	Every time.Duration
	Run   func(ctx context.Context) (int, error)
}

type Routine struct {
	tasks []Task
	now   func() time.Time
	wg    sync.WaitGroup
}

func New(tasks ...Task) *Routine {
	return &Routine{tasks: tasks, now: time.Now}
}

// Start launches one goroutine per task. They stop when ctx is cancelled;
// Wait blocks until they have.
func (r *Routine) Start(ctx context.Context) {
	for _, t := range r.tasks {
		t := t
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if t.Every > 0 {
				r.loop(ctx, t)
			} else {
				r.nightly(ctx, t)
			}
		}()
	}
	logger.LogInfo("Cleanup routine started with %d tasks", len(r.tasks))
}

func (r *Routine) Wait() {
	r.wg.Wait()
}

func (r *Routine) loop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.run(ctx, t)
		}
	}
}

func (r *Routine) nightly(ctx context.Context, t Task) {
	for {
		now := r.now()
		next := NextRun(now, cleanupHour)
		logger.LogInfo("Next %s scheduled for %v (in %v)", t.Name, next.Format("2006-01-02 15:04:05"), next.Sub(now))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.run(ctx, t)
		}
	}
}

// RunOnce runs every task immediately, in order.
func (r *Routine) RunOnce(ctx context.Context) int {
	total := 0
	for _, t := range r.tasks {
		total += r.run(ctx, t)
	}
	return total
}

func (r *Routine) run(ctx context.Context, t Task) int {
	n, err := t.Run(ctx)
	if err != nil {
		logger.LogError("Cleanup task %s failed: %v", t.Name, err)
		return n
	}
	if n > 0 {
		logger.LogInfo("Cleanup task %s handled %d items", t.Name, n)
	}
	return n
}

// NextRun is the next occurrence of hour:00 strictly after now, in now's
// location.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
