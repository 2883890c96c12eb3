package sweeper

import (
	"context"
	"time"
)

type UsageSweeper interface {
	Sweep(ctx context.Context, retentionDays int) (int64, error)
	SweepAnonymous(ctx context.Context) (int64, error)
}

type AccountSweeper interface {
	SweepDeleted(ctx context.Context) (int64, error)
}

type ArtifactSweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int64, error)
}

// UsageRetention removes aged usage rows and closed anonymous windows.
func UsageRetention(ledger UsageSweeper, retentionDays int, every time.Duration) Task {
	return Task{
		Name:     "usage-retention",
		Interval: every,
		Run: func(ctx context.Context) (int64, error) {
			n, err := ledger.Sweep(ctx, retentionDays)
			if err != nil {
				return n, err
			}
			anon, err := ledger.SweepAnonymous(ctx)
			return n + anon, err
		},
	}
}

// AccountDeletion hard-deletes users past their deletion grace period.
func AccountDeletion(users AccountSweeper, every time.Duration) Task {
	return Task{
		Name:     "account-deletion",
		Interval: every,
		Run:      users.SweepDeleted,
	}
}

// ArtifactJanitor removes produced files older than maxAge.
func ArtifactJanitor(store ArtifactSweeper, maxAge, every time.Duration) Task {
	return Task{
		Name:     "artifact-janitor",
		Interval: every,
		Run: func(ctx context.Context) (int64, error) {
			return store.Sweep(ctx, maxAge)
		},
	}
}
