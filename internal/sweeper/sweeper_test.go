package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeLedger struct {
	days int
	err  error
}

func (f *fakeLedger) Sweep(ctx context.Context, retentionDays int) (int64, error) {
	f.days = retentionDays
	return 3, f.err
}

func (f *fakeLedger) SweepAnonymous(ctx context.Context) (int64, error) {
	return 4, nil
}

func TestUsageRetentionSumsBothSweeps(t *testing.T) {
	ledger := &fakeLedger{}
	task := UsageRetention(ledger, 30, time.Hour)

	n, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, 30, ledger.days)
	assert.Equal(t, "usage-retention", task.Name)
}

func TestUsageRetentionStopsOnError(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("deadlock")}

	_, err := UsageRetention(ledger, 30, time.Hour).Run(context.Background())
	assert.Error(t, err)
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	var ran atomic.Int32
	s := New(zaptest.NewLogger(t),
		Task{Name: "panics", Run: func(ctx context.Context) (int64, error) { panic("boom") }},
		Task{Name: "fails", Run: func(ctx context.Context) (int64, error) { return 0, errors.New("db down") }},
		Task{Name: "works", Run: func(ctx context.Context) (int64, error) { ran.Add(1); return 2, nil }},
	)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panics: panic: boom")
	assert.Contains(t, err.Error(), "fails: db down")
	assert.Equal(t, int32(1), ran.Load(), "later tasks still run")
}

func TestLoopSurvivesPanicsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	s := New(zaptest.NewLogger(t), Task{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) (int64, error) {
			if calls.Add(1)%2 == 1 {
				panic("odd iteration")
			}
			return 1, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool { return calls.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after cancellation")
	}
}
