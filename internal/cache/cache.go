// Package cache owns the process-local caches: DetailPath per title, stream descriptors per title,
// and the single home listing slot. Nothing here is persisted.
package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boxrelay/boxrelay/constant"
	"github.com/boxrelay/boxrelay/filesystem"
	"github.com/metafates/gache"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/samber/mo"
)

// Entry is a cached value stamped with its write time.
type Entry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// Valid reports whether the entry is younger than ttl at now.
func (e Entry[T]) Valid(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.StoredAt) < ttl
}

// Age returns how long ago the entry was written.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

var stores atomic.Int64

// Store holds the three independent caches. The zero value is not usable, see New.
type Store[D any] struct {
	paths   cmap.ConcurrentMap[string, string]
	streams cmap.ConcurrentMap[string, Entry[[]D]]

	homeMu  sync.Mutex
	home    *gache.Cache[*Entry[json.RawMessage]]
	homeTTL time.Duration
}

// New creates an empty store. homeTTL bounds the home slot.
func New[D any](homeTTL time.Duration) *Store[D] {
	return &Store[D]{
		paths:   cmap.New[string](),
		streams: cmap.New[Entry[[]D]](),
		home: gache.New[*Entry[json.RawMessage]](&gache.Options{
			Path:       filepath.Join("/", constant.App, fmt.Sprintf("home-%d.json", stores.Add(1))),
			Lifetime:   homeTTL,
			FileSystem: &filesystem.GacheFs{},
		}),
		homeTTL: homeTTL,
	}
}

// Path returns the cached DetailPath of id.
func (s *Store[D]) Path(id string) mo.Option[string] {
	if path, ok := s.paths.Get(id); ok {
		return mo.Some(path)
	}
	return mo.None[string]()
}

// SetPath stores the DetailPath of id, replacing any previous value.
func (s *Store[D]) SetPath(id, path string) {
	s.paths.Set(id, path)
}

// SeedPath stores the DetailPath of id unless one is already known.
// Reports whether the value was stored.
func (s *Store[D]) SeedPath(id, path string) bool {
	return s.paths.SetIfAbsent(id, path)
}

// Paths returns the number of known DetailPaths.
func (s *Store[D]) Paths() int {
	return s.paths.Count()
}

// Streams returns the stream entry of id, valid or not. TTL checks belong to the caller.
func (s *Store[D]) Streams(id string) mo.Option[Entry[[]D]] {
	if entry, ok := s.streams.Get(id); ok {
		return mo.Some(entry)
	}
	return mo.None[Entry[[]D]]()
}

// SetStreams replaces the stream entry of id. Empty lists are refused.
func (s *Store[D]) SetStreams(id string, value []D, now time.Time) bool {
	if len(value) == 0 {
		return false
	}
	s.streams.Set(id, Entry[[]D]{Value: value, StoredAt: now})
	return true
}

// Home returns the home listing if it is still valid at now.
func (s *Store[D]) Home(now time.Time) mo.Option[Entry[json.RawMessage]] {
	s.homeMu.Lock()
	defer s.homeMu.Unlock()

	entry, expired, err := s.home.Get()
	if err != nil || expired || entry == nil || !entry.Valid(s.homeTTL, now) {
		return mo.None[Entry[json.RawMessage]]()
	}

	return mo.Some(*entry)
}

// SetHome replaces the home listing.
func (s *Store[D]) SetHome(value json.RawMessage, now time.Time) error {
	s.homeMu.Lock()
	defer s.homeMu.Unlock()

	return s.home.Set(&Entry[json.RawMessage]{Value: value, StoredAt: now})
}
