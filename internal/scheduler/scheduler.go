package scheduler

import (
	"context"
	"log"
	"time"
)

// Task is one consumer of a scheduler tick. Tasks on the same scheduler
// share a single timer, so one upstream refresh feeds every consumer
// instead of each keeping its own poller.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler drives its tasks once on start and then at a fixed interval
// until the context is cancelled.
type Scheduler struct {
	interval time.Duration
	tasks    []Task
}

// New creates a scheduler over the given tasks.
func New(interval time.Duration, tasks ...Task) *Scheduler {
	if interval <= 0 {
		interval = 4 * time.Hour
	}
	return &Scheduler{interval: interval, tasks: tasks}
}

// Run blocks until ctx is cancelled. Tasks run sequentially per tick in
// registration order; a failing task is logged and does not stop the
// others or the schedule.
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, t := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		if err := t.Run(ctx); err != nil {
			log.Printf("scheduler: task %s failed: %v", t.Name, err)
		}
	}
}
