package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/pkg/adapters/redis"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunRequestStoreContract(t, redis.NewStore(client))
}

func TestRedisNotificationStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunNotificationStoreContract(t, redis.NewNotificationStore(client))
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewStore(client, redis.WithPrefix("hoa:"))
	ctx := context.Background()

	err := store.Save(ctx, &domain.Request{ID: "r1", Status: domain.StatusSubmitted, CreatedAt: time.Now()})
	require.NoError(t, err)

	assert.True(t, mr.Exists("hoa:request:r1"))
	assert.True(t, mr.Exists("hoa:requests"))
}

func TestRedisStore_ListOrdersByCreation(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewStore(client)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, &domain.Request{ID: "late", CreatedAt: t0.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, &domain.Request{ID: "early", CreatedAt: t0}))
	// Re-saving must not move the request in the index.
	require.NoError(t, store.Save(ctx, &domain.Request{ID: "early", CreatedAt: t0.Add(2 * time.Hour)}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, ids)
}

func TestRedisLocker_TryLock(t *testing.T) {
	mr, client := newClient(t)
	a := redis.NewLocker(client, redis.WithPrefix("test:"))
	b := redis.NewLocker(client, redis.WithPrefix("test:"))
	ctx := context.Background()

	unlock, ok, err := a.TryLock(ctx, "req-1", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:lock:req-1"))

	start := time.Now()
	_, ok, err = b.TryLock(ctx, "req-1", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")
	assert.Less(t, time.Since(start), 100*time.Millisecond, "TryLock must not wait")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:req-1"))

	unlock2, ok, err := b.TryLock(ctx, "req-1", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock2(ctx)
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	mr, client := newClient(t)
	l := redis.NewLocker(client)
	ctx := context.Background()

	stale, ok, err := l.TryLock(ctx, "req-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.TryLock(ctx, "req-1", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be taken over")

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists(redis.DefaultPrefix+"lock:req-1"), "stale token must not release the new holder")
}

type slowStore struct {
	*redis.Store
}

func (s slowStore) Save(ctx context.Context, r *domain.Request) error {
	time.Sleep(100 * time.Millisecond)
	return s.Store.Save(ctx, r)
}

func TestRedisLocker_GuardsEngineAcrossReplicas(t *testing.T) {
	_, client := newClient(t)
	replica := func() *arcflow.Engine {
		eng, err := arcflow.New(
			arcflow.WithRequestStore(slowStore{redis.NewStore(client)}),
			arcflow.WithNotificationStore(redis.NewNotificationStore(client)),
			arcflow.WithLocker(redis.NewLocker(client)),
		)
		require.NoError(t, err)
		return eng
	}
	a, b := replica(), replica()

	owner := arcflow.WithActor(context.Background(), domain.Actor{ID: "owner-1", Role: domain.RoleHomeowner})
	reviewer := arcflow.WithActor(context.Background(), domain.Actor{ID: "rev-1", Role: domain.RoleReviewer})

	req, err := a.CreateRequest(owner, domain.Draft{
		Title:          "Shed",
		Classification: "structure",
		Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm Ct"},
	})
	require.NoError(t, err)
	loaded, err := b.LoadRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, eng := range []*arcflow.Engine{a, b} {
		wg.Add(1)
		go func(i int, eng *arcflow.Engine) {
			defer wg.Done()
			_, errs[i] = eng.TransitionRequest(reviewer, req.ID, domain.StatusUnderReview, "")
		}(i, eng)
	}
	wg.Wait()

	var ok, busy int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConcurrentModification):
			busy++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, busy)
}

func TestRedisLocker_ReplicaSeesCommitsFromOthers(t *testing.T) {
	_, client := newClient(t)
	replica := func() *arcflow.Engine {
		eng, err := arcflow.New(
			arcflow.WithRequestStore(redis.NewStore(client)),
			arcflow.WithNotificationStore(redis.NewNotificationStore(client)),
			arcflow.WithLocker(redis.NewLocker(client)),
		)
		require.NoError(t, err)
		return eng
	}
	a, b := replica(), replica()

	owner := arcflow.WithActor(context.Background(), domain.Actor{ID: "owner-1", Role: domain.RoleHomeowner})
	reviewer := arcflow.WithActor(context.Background(), domain.Actor{ID: "rev-1", Role: domain.RoleReviewer})

	req, err := a.CreateRequest(owner, domain.Draft{
		Title:          "Shed",
		Classification: "structure",
		Submitter:      domain.Contact{Name: "Dana", PropertyAddress: "12 Elm Ct"},
	})
	require.NoError(t, err)
	_, err = b.LoadRequests(context.Background())
	require.NoError(t, err)

	_, err = a.TransitionRequest(reviewer, req.ID, domain.StatusUnderReview, "")
	require.NoError(t, err)

	// b loaded before the transition; repeating the edge must be rejected.
	_, err = b.TransitionRequest(reviewer, req.ID, domain.StatusUnderReview, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	res, err := b.TransitionRequest(reviewer, req.ID, domain.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, res.From)

	stored, err := redis.NewStore(client).Load(context.Background(), req.ID)
	require.NoError(t, err)
	stages := make([]domain.Status, 0, len(stored.History))
	for _, h := range stored.History {
		stages = append(stages, h.Stage)
	}
	assert.Equal(t, []domain.Status{domain.StatusSubmitted, domain.StatusUnderReview, domain.StatusApproved}, stages)
}
