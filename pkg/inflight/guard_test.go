package inflight_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/inflight"
	"github.com/aretw0/arcflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_FailsFastOnSameRequest(t *testing.T) {
	g := inflight.New()
	ctx := context.Background()

	release, err := g.TryAcquire(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, g.IsInFlight("r1"))

	_, err = g.TryAcquire(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	release()
	release() // idempotent
	assert.False(t, g.IsInFlight("r1"))

	release2, err := g.TryAcquire(ctx, "r1")
	require.NoError(t, err)
	release2()
}

func TestGuard_UnrelatedRequestsDoNotBlock(t *testing.T) {
	g := inflight.New()
	ctx := context.Background()

	release, err := g.TryAcquire(ctx, "r1")
	require.NoError(t, err)
	defer release()

	done := make(chan error, 1)
	go func() {
		done <- g.Do(ctx, "r2", func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("command on r2 blocked behind r1")
	}
	assert.Equal(t, []string{"r1"}, g.InFlight())
}

func TestGuard_ReleasesOnPanic(t *testing.T) {
	g := inflight.New()
	assert.Panics(t, func() {
		_ = g.Do(context.Background(), "r1", func(context.Context) error { panic("boom") })
	})
	assert.False(t, g.IsInFlight("r1"))
}

func TestGuard_ReleasesOnError(t *testing.T) {
	g := inflight.New()
	want := errors.New("store down")
	err := g.Do(context.Background(), "r1", func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
	assert.Empty(t, g.InFlight())
}

func TestGuard_ConcurrentExactlyOne(t *testing.T) {
	g := inflight.New()
	ctx := context.Background()
	start := make(chan struct{})
	hold := make(chan struct{})

	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := g.Do(ctx, "same", func(context.Context) error {
				<-hold
				return nil
			})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, domain.ErrConcurrentModification):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	close(start)
	// Give losers time to fail before the winner finishes.
	time.Sleep(50 * time.Millisecond)
	close(hold)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(7), conflicts)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	unlocked int
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, false, nil
	}
	f.held[key] = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		f.unlocked++
		return nil
	}, true, nil
}

func TestGuard_DistributedLocker(t *testing.T) {
	shared := &fakeLocker{held: map[string]bool{}}
	replicaA := inflight.New(inflight.WithLocker(shared))
	replicaB := inflight.New(inflight.WithLocker(shared))
	ctx := context.Background()
	assert.True(t, replicaA.Distributed())
	assert.False(t, inflight.New().Distributed())

	release, err := replicaA.TryAcquire(ctx, "r1")
	require.NoError(t, err)

	_, err = replicaB.TryAcquire(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.False(t, replicaB.IsInFlight("r1"), "failed acquisition must not leave a local mark")

	release()
	assert.Equal(t, 1, shared.unlocked)

	release, err = replicaB.TryAcquire(ctx, "r1")
	require.NoError(t, err)
	release()
}
