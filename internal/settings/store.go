// Package settings keeps runtime overrides of environment defaults in the
// settings table.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aura-bot/internal/models"
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = 30 * time.Second
)

type cacheEntry struct {
	value    string
	found    bool
	storedAt time.Time
}

// Store reads are served from a short-lived cache. Writes go straight to the
// table, bump the generation and evict the key, so a write is visible to the
// next read in this process. A load that started before a write is neither
// shared with later readers nor cached. Other processes see the write once
// their entry expires.
type Store struct {
	db    *gorm.DB
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time

	mu  sync.Mutex
	gen uint64
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache, _ := lru.New[string, cacheEntry](defaultCacheSize)
	return &Store{db: db, cache: cache, ttl: ttl, now: time.Now}
}

// Get returns the stored override for key. found is false when no row exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	key = NormalizeKey(key)

	if entry, ok := s.cache.Get(key); ok {
		if s.now().Sub(entry.storedAt) < s.ttl {
			return entry.value, entry.found, nil
		}
		s.cache.Remove(key)
	}

	gen := s.generation()
	v, err, _ := s.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		var row models.Setting
		err := s.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
		var entry cacheEntry
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = cacheEntry{storedAt: s.now()}
		case err != nil:
			return nil, fmt.Errorf("settings: get %s: %w", key, err)
		default:
			entry = cacheEntry{value: row.Value, found: true, storedAt: s.now()}
		}
		s.fill(key, entry, gen)
		return entry, nil
	})
	if err != nil {
		return "", false, err
	}
	entry := v.(cacheEntry)
	return entry.value, entry.found, nil
}

func (s *Store) All(ctx context.Context) ([]models.Setting, error) {
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("settings: list: %w", err)
	}
	return rows, nil
}

// Set upserts key. Last write wins.
func (s *Store) Set(ctx context.Context, key, value, description, updatedBy string) error {
	key = NormalizeKey(key)
	row := models.Setting{
		Key:         key,
		Value:       strings.TrimSpace(value),
		Description: description,
		UpdatedBy:   updatedBy,
		UpdatedAt:   s.now(),
	}

	columns := []string{"value", "updated_by", "updated_at"}
	if description != "" {
		columns = append(columns, "description")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
	s.invalidate(key)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	key = NormalizeKey(key)
	err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{}).Error
	s.invalidate(key)
	if err != nil {
		return fmt.Errorf("settings: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// fill caches entry unless a write happened since the load began.
func (s *Store) fill(key string, entry cacheEntry, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.Add(key, entry)
	}
}

func (s *Store) invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Remove(key)
}

func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
