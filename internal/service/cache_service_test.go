package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"filecache-api/internal/cache"
	"filecache-api/internal/events"
	"filecache-api/internal/models"
	"filecache-api/internal/testutil"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.got))
	for _, e := range r.got {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T) (*CacheService, *recorder) {
	t.Helper()
	store, err := cache.NewFileStore(nil, cache.FileStoreConfig{Directory: t.TempDir(), Prefix: "zzz_"})
	require.NoError(t, err)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	rec := &recorder{}
	return New(store, nil, db, rec), rec
}

func TestCacheService_PutGet(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	n, err := svc.Put(ctx, "user:42", []byte(`{"name":"Ada"}`), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 14, n)

	data, err := svc.Get(ctx, "user:42")
	require.NoError(t, err)
	require.Equal(t, `{"name":"Ada"}`, string(data))

	entries, total, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "user:42", entries[0].Key)
	require.Equal(t, cache.Blake2bHasher{}.Hash("user:42"), entries[0].HashedID)
	require.EqualValues(t, 60, entries[0].TTLSeconds)

	require.Equal(t, []events.Type{events.EntryWritten}, rec.types())
	require.Equal(t, Stats{Hits: 1, Writes: 1}, svc.Stats())
}

func TestCacheService_PutOverwritesCatalogRow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, "k", []byte("a"), time.Minute)
	require.NoError(t, err)
	_, err = svc.Put(ctx, "k", []byte("abc"), 2*time.Minute)
	require.NoError(t, err)

	entries, total, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, 3, entries[0].Size)
	require.EqualValues(t, 120, entries[0].TTLSeconds)
}

func TestCacheService_ExpiredEntryIsForgotten(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, "k", []byte("v"), 0)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)

	_, total, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Equal(t, []events.Type{events.EntryWritten, events.EntryExpired}, rec.types())
	require.Equal(t, uint64(1), svc.Stats().Expired)
	require.Equal(t, uint64(1), svc.Stats().Misses)
}

func TestCacheService_Exists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.Exists(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.Put(ctx, "k", []byte("v"), time.Minute)
	require.NoError(t, err)
	ok, err = svc.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCacheService_DeleteAndClear(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, err := svc.Put(ctx, k, []byte(k), time.Minute)
		require.NoError(t, err)
	}

	removed, err := svc.Delete(ctx, "a")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = svc.Delete(ctx, "a")
	require.NoError(t, err)
	require.False(t, removed)

	n, err := svc.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, total, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)

	types := rec.types()
	require.Equal(t, events.EntryRemoved, types[3])
	require.Equal(t, events.CacheCleared, types[4])
	require.Equal(t, 2, rec.got[4].Count)
}

func TestCacheService_RejectsEmptyKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "")
	require.ErrorIs(t, err, cache.ErrInvalidArgument)
	_, err = svc.Put(ctx, "", []byte("v"), time.Minute)
	require.ErrorIs(t, err, cache.ErrInvalidArgument)
	_, err = svc.Delete(ctx, "")
	require.ErrorIs(t, err, cache.ErrInvalidArgument)
}

func TestCacheService_ConcurrentGets(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, "hot", []byte("value"), time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := svc.Get(ctx, "hot")
			if err == nil && string(data) != "value" {
				err = errors.New("unexpected payload " + string(data))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

type failingStore struct {
	cache.Storage
	err error
}

func (f failingStore) Exists(string) (bool, error) { return false, f.err }

func (f failingStore) Write(string, []byte, time.Duration) (int, error) { return 0, f.err }

func TestCacheService_PropagatesStorageErrors(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	ioErr := &cache.StorageError{Op: "stat", Path: "/x", Err: errors.New("input/output error")}
	svc := New(failingStore{err: ioErr}, nil, db, nil)
	ctx := context.Background()

	_, err = svc.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrStorageIO)

	_, err = svc.Put(ctx, "k", []byte("v"), time.Minute)
	require.ErrorIs(t, err, cache.ErrStorageIO)

	var count int64
	require.NoError(t, db.Model(&models.Entry{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCacheService_CatalogExpiryUsesWholeSeconds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, "k", []byte("v"), 90*time.Second)
	require.NoError(t, err)

	entries, _, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Zero(t, entries[0].ExpiresAt.Nanosecond())

	written := time.Date(2026, 1, 2, 3, 4, 5, 999_000_000, time.UTC)
	require.Equal(t, time.Date(2026, 1, 2, 3, 5, 35, 0, time.UTC), expiresAt(written, 90))
}

func TestCacheService_CancelledGetStillForgetsExpiredEntry(t *testing.T) {
	svc, rec := newTestService(t)

	_, err := svc.Put(context.Background(), "k", []byte("v"), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)

	_, total, err := svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Equal(t, []events.Type{events.EntryWritten, events.EntryExpired}, rec.types())
}
