package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omegabytes/carbonboard/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*MemoryStore
	appendErr error
	clearErr  error
	loadErr   error
}

func (f *failingStore) Append(ctx context.Context, id string, e Entry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.MemoryStore.Append(ctx, id, e)
}

func (f *failingStore) Clear(ctx context.Context, id string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.MemoryStore.Clear(ctx, id)
}

func (f *failingStore) Load(ctx context.Context, id string) ([]Entry, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryStore.Load(ctx, id)
}

func TestRegistry_NewSession(t *testing.T) {
	r := NewRegistry(nil)
	a := r.NewSession()
	b := r.NewSession()

	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)

	l, err := r.Ledger(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestRegistry_AppendPersistsAndStamps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewRegistry(store)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	id := r.NewSession()
	got, err := r.Append(ctx, id, Entry{Model: "gpt-4", CarbonGrams: 1})
	require.NoError(t, err)
	assert.Equal(t, fixed, got.RecordedAt)

	stored, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []Entry{got}, stored)

	l, err := r.Ledger(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []Entry{got}, l.All())
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	a, b := r.NewSession(), r.NewSession()

	_, err := r.Append(ctx, a, Entry{CarbonGrams: 1})
	require.NoError(t, err)

	la, _ := r.Ledger(ctx, a)
	lb, _ := r.Ledger(ctx, b)
	assert.Equal(t, 1, la.Len())
	assert.Equal(t, 0, lb.Len())
}

func TestRegistry_RestoresFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, "restored", Entry{Model: "m", CarbonGrams: 2}))

	r := NewRegistry(store)
	l, err := r.Ledger(ctx, "restored")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Totals().Count)

	r.Forget("restored")
	l2, err := r.Ledger(ctx, "restored")
	require.NoError(t, err)
	assert.Equal(t, 1, l2.Len())
}

func TestRegistry_AppendRejectsInvalidEntry(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Append(context.Background(), r.NewSession(), Entry{CarbonGrams: -1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRegistry_InvalidSessionID(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Ledger(context.Background(), "../x")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = r.Append(context.Background(), "", Entry{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRegistry_StoreFailureLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: NewMemoryStore()}
	r := NewRegistry(store)
	id := r.NewSession()

	_, err := r.Append(ctx, id, Entry{CarbonGrams: 1})
	require.NoError(t, err)

	store.appendErr = errors.New("disk full")
	_, err = r.Append(ctx, id, Entry{CarbonGrams: 2})
	assert.ErrorContains(t, err, "disk full")

	store.clearErr = errors.New("read-only")
	assert.ErrorContains(t, r.Clear(ctx, id), "read-only")

	l, _ := r.Ledger(ctx, id)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1.0, l.Totals().TotalCarbonGrams)
}

func TestRegistry_LoadFailure(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), loadErr: errors.New("boom")}
	r := NewRegistry(store)
	_, err := r.Ledger(context.Background(), "sess")
	assert.ErrorContains(t, err, "boom")
}

func TestRegistry_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewRegistry(store)
	id := r.NewSession()
	_, _ = r.Append(ctx, id, Entry{CarbonGrams: 1})

	require.NoError(t, r.Clear(ctx, id))
	l, _ := r.Ledger(ctx, id)
	assert.Equal(t, 0, l.Len())
	stored, _ := store.Load(ctx, id)
	assert.Empty(t, stored)
}

func TestRegistry_ReadsDoNotCacheEmptySessions(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)

	for i := 0; i < 100; i++ {
		l, err := r.Ledger(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.Equal(t, 0, l.Len())
	}
	r.NewSession()
	assert.Empty(t, r.sessions)

	_, err := r.Append(ctx, "s1", Entry{CarbonGrams: 1})
	require.NoError(t, err)
	assert.Len(t, r.sessions, 1)

	require.NoError(t, r.Clear(ctx, "s1"))
	assert.Empty(t, r.sessions)
}

type blockingStore struct {
	*MemoryStore
	slowID  string
	release chan struct{}
	loads   atomic.Int32
}

func (b *blockingStore) Load(ctx context.Context, id string) ([]Entry, error) {
	b.loads.Add(1)
	if id == b.slowID {
		<-b.release
	}
	return b.MemoryStore.Load(ctx, id)
}

func TestRegistry_SlowLoadDoesNotBlockOtherSessions(t *testing.T) {
	ctx := context.Background()
	store := &blockingStore{MemoryStore: NewMemoryStore(), slowID: "slow", release: make(chan struct{})}
	require.NoError(t, store.MemoryStore.Append(ctx, "slow", Entry{CarbonGrams: 1}))
	r := NewRegistry(store)

	var wg sync.WaitGroup
	results := make([]*Ledger, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := r.Ledger(ctx, "slow")
			assert.NoError(t, err)
			results[i] = l
		}()
	}
	require.Eventually(t, func() bool { return store.loads.Load() >= 1 }, time.Second, time.Millisecond)

	other, err := r.Append(ctx, "fast", Entry{CarbonGrams: 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, other.CarbonGrams)

	close(store.release)
	wg.Wait()
	for _, l := range results {
		require.NotNil(t, l)
		assert.Equal(t, 1, l.Len())
	}
	cached, ok := r.cached("slow")
	require.True(t, ok)
	assert.Same(t, cached, results[0])
}
