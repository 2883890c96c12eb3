// Package sweeper runs the periodic reclamation tasks. Each task owns its
// ticker and goroutine; a failing or panicking iteration is logged and
// counted, and the task carries on at its next tick.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/metrics"
)

// Task is one periodic job. Run returns how many rows or files it removed.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

type Supervisor struct {
	tasks []Task
	log   *zap.Logger
	wg    sync.WaitGroup
}

func New(log *zap.Logger, tasks ...Task) *Supervisor {
	return &Supervisor{tasks: tasks, log: log}
}

// Start launches every task in its own goroutine. They stop when ctx is
// cancelled; Wait blocks until they have.
func (s *Supervisor) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go func(task Task) {
			defer s.wg.Done()
			s.loop(ctx, task)
		}(task)
	}
	s.log.Info("🕒 Background sweepers started", zap.Int("tasks", len(s.tasks)))
}

func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// RunOnce runs every task a single time and joins their errors.
func (s *Supervisor) RunOnce(ctx context.Context) error {
	var errs []error
	for _, task := range s.tasks {
		if err := s.iterate(ctx, task); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Supervisor) loop(ctx context.Context, task Task) {
	interval := task.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = s.iterate(ctx, task)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sweeper stopped", zap.String("task", task.Name))
			return
		case <-ticker.C:
			_ = s.iterate(ctx, task)
		}
	}
}

// iterate is the per-iteration error boundary.
func (s *Supervisor) iterate(ctx context.Context, task Task) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			metrics.SweeperRuns.WithLabelValues(task.Name, "error").Inc()
			s.log.Error("Sweeper iteration failed",
				zap.String("task", task.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		}
	}()

	removed, err := task.Run(ctx)
	if err != nil {
		return err
	}
	metrics.SweeperRuns.WithLabelValues(task.Name, "ok").Inc()
	metrics.SweeperDeleted.WithLabelValues(task.Name).Add(float64(removed))
	if removed > 0 {
		s.log.Info("Sweeper iteration finished",
			zap.String("task", task.Name),
			zap.Int64("removed", removed),
			zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}
