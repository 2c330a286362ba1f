package proxy

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

type fakeTimer struct {
	now atomic.Uint32
}

func (t *fakeTimer) Now() uint32 {
	return t.now.Load()
}

var testEntry = media.ProxyEntry{
	SessionToken:  "PHPSESSID=abc123",
	OriginPageURL: "https://superflixapi.digital/filme/tt0133093",
	VideoID:       "1001",
}

func TestStore(t *testing.T) {
	s := NewStore(0, time.Minute)

	_, err := s.Get("foo")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put("foo", testEntry))
	entry, err := s.Get("foo")
	require.NoError(t, err)
	require.Equal(t, testEntry, entry)
	require.EqualValues(t, 1, s.Len())

	// Get doesn't remove
	_, err = s.Get("foo")
	require.NoError(t, err)

	require.True(t, s.Consume("foo"))
	require.False(t, s.Consume("foo"))
	_, err = s.Get("foo")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreExpiry(t *testing.T) {
	timer := &fakeTimer{}
	timer.now.Store(1000)
	s := newStoreWithTimer(0, time.Minute, timer)

	require.NoError(t, s.Put("foo", testEntry))

	timer.now.Store(1030)
	_, err := s.Get("foo")
	require.NoError(t, err)

	timer.now.Store(1061)
	_, err = s.Get("foo")
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, s.Consume("foo"))
}

func TestStoreConsumeOnce(t *testing.T) {
	s := NewStore(0, time.Minute)
	require.NoError(t, s.Put("foo", testEntry))

	var wg sync.WaitGroup
	var consumed atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Consume("foo") {
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, consumed.Load())
}
