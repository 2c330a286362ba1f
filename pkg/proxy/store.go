package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coocood/freecache"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

// ErrNotFound is returned for unknown or expired keys.
var ErrNotFound = errors.New("proxy entry not found")

// Minimum size of a freecache cache.
const minStoreSize = 512 * 1024

// Store keeps proxy entries in a bounded in-memory cache.
// Entries expire after the TTL. Expired entries are dropped lazily on access or when the cache is full.
type Store struct {
	cache *freecache.Cache
	ttl   int
	// Serializes Consume so an entry is consumed once.
	consumeLock sync.Mutex
}

// NewStore creates a Store with the given size in bytes and entry TTL.
// Sizes below 512 KiB are raised to 512 KiB and TTLs below one second to one second.
func NewStore(size int, ttl time.Duration) *Store {
	return newStore(freecache.NewCache(storeSize(size)), ttl)
}

func newStoreWithTimer(size int, ttl time.Duration, timer freecache.Timer) *Store {
	return newStore(freecache.NewCacheCustomTimer(storeSize(size), timer), ttl)
}

func newStore(cache *freecache.Cache, ttl time.Duration) *Store {
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return &Store{
		cache: cache,
		ttl:   seconds,
	}
}

func storeSize(size int) int {
	if size < minStoreSize {
		return minStoreSize
	}
	return size
}

// Put stores an entry under the key, replacing any existing one.
func (s *Store) Put(key string, entry media.ProxyEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("couldn't encode proxy entry: %w", err)
	}
	if err := s.cache.Set([]byte(key), value, s.ttl); err != nil {
		return fmt.Errorf("couldn't store proxy entry: %w", err)
	}
	return nil
}

// Get returns the entry for the key, or ErrNotFound.
func (s *Store) Get(key string) (media.ProxyEntry, error) {
	value, err := s.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return media.ProxyEntry{}, ErrNotFound
	} else if err != nil {
		return media.ProxyEntry{}, err
	}
	return decodeEntry(value)
}

// Consume deletes the entry for the key and reports whether it was still there.
// Of concurrent calls for the same key only one returns true.
func (s *Store) Consume(key string) bool {
	s.consumeLock.Lock()
	defer s.consumeLock.Unlock()

	// Del alone would also report expired entries that weren't evicted yet
	if _, err := s.cache.Get([]byte(key)); err != nil {
		return false
	}
	return s.cache.Del([]byte(key))
}

// Len returns the number of stored entries, including expired ones that weren't evicted yet.
func (s *Store) Len() int64 {
	return s.cache.EntryCount()
}

func decodeEntry(value []byte) (media.ProxyEntry, error) {
	var entry media.ProxyEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		return media.ProxyEntry{}, fmt.Errorf("couldn't decode proxy entry: %w", err)
	}
	return entry, nil
}
