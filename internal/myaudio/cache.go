package myaudio

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// FileLoader reads segments straight from disk on every call.
type FileLoader struct{}

// LoadSegment implements the segment source used by the localization
// pipeline.
func (FileLoader) LoadSegment(path string, offset, duration float64) (*Segment, error) {
	return LoadSegment(path, offset, duration)
}

// CachingLoader wraps LoadSegment with a TTL cache. The grouper emits
// redundant candidate events, so the same (file, window) is typically
// decoded several times per run; caching trades memory for decode time.
// Safe for concurrent use.
type CachingLoader struct {
	cache  *cache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingLoader returns a loader whose entries expire after ttl.
func NewCachingLoader(ttl time.Duration) *CachingLoader {
	return &CachingLoader{
		cache: cache.New(ttl, ttl*2),
	}
}

// LoadSegment returns a copy of the cached segment, decoding and caching
// it on first use. Copies keep callers free to filter samples in place.
func (l *CachingLoader) LoadSegment(path string, offset, duration float64) (*Segment, error) {
	key := fmt.Sprintf("%s:%.9f:%.9f", path, offset, duration)

	if cached, found := l.cache.Get(key); found {
		if seg, ok := cached.(*Segment); ok {
			l.hits.Add(1)
			if m := getMetrics(); m != nil {
				m.RecordCacheOperation("get", "hit")
			}
			return seg.Clone(), nil
		}
	}

	seg, err := LoadSegment(path, offset, duration)
	if err != nil {
		return nil, err
	}
	l.misses.Add(1)
	l.cache.Set(key, seg, cache.DefaultExpiration)
	if m := getMetrics(); m != nil {
		m.RecordCacheOperation("get", "miss")
		m.RecordCacheOperation("set", "store")
		m.UpdateCacheEntries(l.cache.ItemCount())
	}
	return seg.Clone(), nil
}

// Stats reports cache hits and misses since creation.
func (l *CachingLoader) Stats() (hits, misses int64) {
	return l.hits.Load(), l.misses.Load()
}

// DirLoader resolves relative paths against a base directory before
// delegating to the next loader. Detection tables often name receiver
// files relative to wherever the recordings live.
type DirLoader struct {
	Dir  string
	Next interface {
		LoadSegment(path string, offset, duration float64) (*Segment, error)
	}
}

// LoadSegment joins Dir onto relative paths and passes absolute paths
// through unchanged.
func (l *DirLoader) LoadSegment(path string, offset, duration float64) (*Segment, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.Dir, path)
	}
	if l.Next != nil {
		return l.Next.LoadSegment(path, offset, duration)
	}
	return LoadSegment(path, offset, duration)
}
