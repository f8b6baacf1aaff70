package module

import (
	"container/list"
	"context"

	"sync"

	"github.com/sirupsen/logrus"
	"github.com/synthica/serverless-voice-conversion-api/pkg/utils"
	"golang.org/x/sync/singleflight"
)

// CachedModel a loaded, ready-to-run model instance. At most one exists per
// reference; entries pinned by an executing conversion are never evicted.
type CachedModel struct {
	Ref       string
	Artifacts *ModelArtifacts
	SizeBytes int64

	lastUsed int64
	pins     int
	stale    bool
	elem     *list.Element
}

// ModelCache shared registry of loaded models with single-flight loads and
// LRU eviction under a memory ceiling
type ModelCache struct {
	mu         sync.Mutex
	entries    map[string]*CachedModel
	lru        *list.List // front = most recently used
	totalBytes int64
	limitBytes int64

	group     singleflight.Group
	artifacts *ArtifactManager
	engine    Engine
}

func NewModelCache(artifacts *ArtifactManager, engine Engine, limitBytes int64) *ModelCache {
	return &ModelCache{
		entries:    make(map[string]*CachedModel),
		lru:        list.New(),
		limitBytes: limitBytes,
		artifacts:  artifacts,
		engine:     engine,
	}
}

// Acquire a ready model instance for ref, loading it at most once no matter
// how many callers arrive concurrently. The caller must Release the returned
// instance. Waiting honors ctx, abandoning the wait never aborts the shared
// load or invalidates the instance other callers receive.
func (c *ModelCache) Acquire(ctx context.Context, ref string) (*CachedModel, error) {
	for {
		c.mu.Lock()
		if e, ok := c.entries[ref]; ok {
			e.pins++
			e.lastUsed = utils.TimestampMS()
			c.lru.MoveToFront(e.elem)
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()

		// loads for distinct refs run independently, same-ref callers share one load
		ch := c.group.DoChan(ref, func() (interface{}, error) {
			return c.load(ref)
		})
		select {
		case <-ctx.Done():
			return nil, NewVCError(Cancelled, "abandoned waiting for model %s: %s", ref, ctx.Err().Error())
		case res := <-ch:
			if res.Err != nil {
				// nothing was stored, the next Acquire retries the load
				return nil, res.Err
			}
		}
		// pin under the lock; retry on the narrow chance the entry was evicted first
	}
}

// load resolve artifacts and instantiate the model. Runs under singleflight,
// detached from any single caller's context.
func (c *ModelCache) load(ref string) (*CachedModel, error) {
	artifacts, err := c.artifacts.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if err := c.engine.Load(context.Background(), artifacts); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(artifacts.SizeBytes)
	e := &CachedModel{
		Ref:       ref,
		Artifacts: artifacts,
		SizeBytes: artifacts.SizeBytes,
		lastUsed:  utils.TimestampMS(),
	}
	e.elem = c.lru.PushFront(e)
	c.entries[ref] = e
	c.totalBytes += e.SizeBytes
	logrus.Infof("model %s loaded, cache now %d entries / %d bytes", ref, len(c.entries), c.totalBytes)
	return e, nil
}

// Release drop the caller's pin. Stale entries leave the cache once unpinned.
func (c *ModelCache) Release(e *CachedModel) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.pins > 0 {
		e.pins--
	}
	if e.pins == 0 && e.stale {
		c.removeLocked(e)
	}
}

// Invalidate remove the entry for ref. A pinned entry stays valid for its
// current conversions and is dropped on the last Release.
func (c *ModelCache) Invalidate(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ref]
	if !ok {
		return
	}
	if e.pins > 0 {
		e.stale = true
		return
	}
	c.removeLocked(e)
}

// evictLocked release least-recently-used unpinned entries until need fits
// under the ceiling. When everything left is pinned the ceiling is allowed to
// overshoot rather than interrupt a running conversion.
func (c *ModelCache) evictLocked(need int64) {
	for c.totalBytes+need > c.limitBytes {
		var victim *CachedModel
		for el := c.lru.Back(); el != nil; el = el.Prev() {
			e := el.Value.(*CachedModel)
			if e.pins == 0 {
				victim = e
				break
			}
		}
		if victim == nil {
			break
		}
		logrus.Infof("evicting model %s (%d bytes)", victim.Ref, victim.SizeBytes)
		c.removeLocked(victim)
	}
}

func (c *ModelCache) removeLocked(e *CachedModel) {
	delete(c.entries, e.Ref)
	c.lru.Remove(e.elem)
	c.totalBytes -= e.SizeBytes
}

// Len loaded entry count
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalBytes bytes currently accounted against the ceiling
func (c *ModelCache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}
