package projector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoller_Run_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, &fakeWarmer{}, nil).WithSettings(5*time.Millisecond, 1, 1, 1*time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.GreaterOrEqual(t, repo.claims, 1)
}

func TestPoller_Run_TriggerRunsCycle(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, &fakeWarmer{}, nil).WithSettings(time.Hour, 1, 1, time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Trigger()
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.claims >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
