package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"filecache-api/internal/cache"
	"filecache-api/internal/events"
	"filecache-api/internal/models"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stats is a snapshot of the service counters.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Writes   uint64 `json:"writes"`
	Removals uint64 `json:"removals"`
	Expired  uint64 `json:"expired"`
}

// CacheService is the cache manager in front of a cache.Storage. It runs the
// exists-then-read sequence, keeps the key catalog in step with the store and
// publishes lifecycle events.
//
// Catalog and publish failures are logged and never fail a cache operation;
// the store is the source of truth.
type CacheService struct {
	store  cache.Storage
	hasher cache.Hasher
	db     *gorm.DB
	pub    events.Publisher

	group singleflight.Group

	hits, misses, writes, removals, expired atomic.Uint64
}

// New wires a service. hasher must be the one the store was built with so
// catalog rows carry the real hashed identifier. A nil pub discards events.
func New(store cache.Storage, hasher cache.Hasher, db *gorm.DB, pub events.Publisher) *CacheService {
	if hasher == nil {
		hasher = cache.Blake2bHasher{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &CacheService{store: store, hasher: hasher, db: db, pub: pub}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty cache key", cache.ErrInvalidArgument)
	}
	return nil
}

// Exists probes the store for a live entry.
func (s *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	ok, err := s.store.Exists(key)
	if err != nil {
		return false, err
	}
	if !ok {
		s.forget(ctx, key)
	}
	return ok, nil
}

// Get returns the payload of a live entry or cache.ErrNotFound. Concurrent
// calls for the same key share one store round trip.
func (s *CacheService) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	// The result is shared by every waiting caller, so one caller's
	// cancellation must not abort catalog cleanup for the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.load(shared, key)
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

func (s *CacheService) load(ctx context.Context, key string) ([]byte, error) {
	ok, err := s.store.Exists(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.misses.Add(1)
		s.forget(ctx, key)
		return nil, cache.ErrNotFound
	}

	data, err := s.store.Read(key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			// Deleted by another process between the probe and the read.
			s.misses.Add(1)
			s.forget(ctx, key)
		}
		return nil, err
	}
	s.hits.Add(1)
	return data, nil
}

// Put writes data under key with the given ttl.
func (s *CacheService) Put(ctx context.Context, key string, data []byte, ttl time.Duration) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	n, err := s.store.Write(key, data, ttl)
	if err != nil {
		return n, err
	}
	s.writes.Add(1)

	seconds := int64(ttl / time.Second)
	entry := models.Entry{
		Key:        key,
		HashedID:   s.hasher.Hash(key),
		Size:       n,
		TTLSeconds: seconds,
		ExpiresAt:  expiresAt(time.Now(), seconds),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"hashed_id", "size", "ttl_seconds", "expires_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		log.Printf("catalog upsert %q: %v", key, err)
	}

	e := events.New(events.EntryWritten, key)
	e.Size = n
	e.TTLSeconds = seconds
	s.publish(ctx, e)
	return n, nil
}

// expiresAt mirrors the store, which stamps entries at one second resolution.
func expiresAt(writtenAt time.Time, ttlSeconds int64) time.Time {
	return writtenAt.Truncate(time.Second).Add(time.Duration(ttlSeconds) * time.Second)
}

// Delete removes key and reports whether an entry was present.
func (s *CacheService) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	removed, err := s.store.Remove(key)
	if err != nil {
		return false, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Entry{}, "cache_key = ?", key).Error; err != nil {
		log.Printf("catalog delete %q: %v", key, err)
	}
	if removed {
		s.removals.Add(1)
		s.publish(ctx, events.New(events.EntryRemoved, key))
	}
	return removed, nil
}

// Clear removes every entry of the store and empties the catalog.
func (s *CacheService) Clear(ctx context.Context) (int, error) {
	n, err := s.store.Clear()
	if err != nil {
		return n, err
	}
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.Entry{}).Error; err != nil {
		log.Printf("catalog clear: %v", err)
	}
	s.removals.Add(uint64(n))

	e := events.New(events.CacheCleared, "")
	e.Count = n
	s.publish(ctx, e)
	return n, nil
}

// List pages through the catalog ordered by key. Rows may name entries that
// have expired but not yet been probed.
func (s *CacheService) List(ctx context.Context, page, limit int) ([]models.Entry, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	db := s.db.WithContext(ctx).Model(&models.Entry{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	var entries []models.Entry
	err := db.Session(&gorm.Session{}).Order("cache_key asc").Limit(limit).Offset((page - 1) * limit).Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	return entries, total, nil
}

// Stats returns the current counters.
func (s *CacheService) Stats() Stats {
	return Stats{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Writes:   s.writes.Load(),
		Removals: s.removals.Load(),
		Expired:  s.expired.Load(),
	}
}

// forget drops the catalog row of an entry the store no longer has. A row
// that existed means the entry expired (or vanished) since it was written.
func (s *CacheService) forget(ctx context.Context, key string) {
	res := s.db.WithContext(ctx).Delete(&models.Entry{}, "cache_key = ?", key)
	if res.Error != nil {
		log.Printf("catalog delete %q: %v", key, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		s.expired.Add(1)
		s.publish(ctx, events.New(events.EntryExpired, key))
	}
}

func (s *CacheService) publish(ctx context.Context, e events.Event) {
	if err := s.pub.Publish(ctx, e); err != nil {
		log.Printf("publish %s %q: %v", e.Type, e.Key, err)
	}
}
