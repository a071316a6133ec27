// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"errors"
	"sync"

	"github.com/GoogleCloudPlatform/gcsio-go/clock"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// ProcessLocal is the in-memory Backend: a map from bucket name to
// CachedBucket, guarded by a single mutex.
type ProcessLocal struct {
	cfg Config
	clk clock.Clock

	mu      sync.Mutex
	buckets map[string]*CachedBucket
}

var _ Backend = (*ProcessLocal)(nil)

// NewProcessLocal constructs an empty process-local cache. A nil clk
// defaults to clock.RealClock{}.
func NewProcessLocal(cfg Config, clk clock.Clock) *ProcessLocal {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ProcessLocal{cfg: cfg, clk: clk, buckets: make(map[string]*CachedBucket)}
}

func (c *ProcessLocal) bucketFor(name string) *CachedBucket {
	b, ok := c.buckets[name]
	if !ok {
		b = NewCachedBucket(name)
		c.buckets[name] = b
	}
	return b
}

func (c *ProcessLocal) nowMs() int64 { return c.clk.Now().UnixMilli() }

func (c *ProcessLocal) hardExpired(e *CacheEntry, nowMs int64) bool {
	return c.cfg.MaxEntryAge > 0 && e.Age(nowMs) > c.cfg.MaxEntryAge
}

// PutResource inserts a minimal entry (no ItemInfo) recording that id is
// known to exist as of now.
func (c *ProcessLocal) PutResource(id path.ResourceID) error {
	if id.IsRoot() {
		return errors.New("cache: cannot cache the root resource")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowMs()
	b := c.bucketFor(id.Bucket())
	entry := &CacheEntry{ResourceID: id, CreationTimeMs: now}
	if id.IsBucket() {
		return b.SetBucketEntry(entry)
	}
	return b.Put(entry)
}

// PutResourceInfo inserts or updates the entry for id with a freshly
// fetched ItemInfo.
func (c *ProcessLocal) PutResourceInfo(id path.ResourceID, info gcs.ItemInfo) error {
	if id.IsRoot() {
		return errors.New("cache: cannot cache the root resource")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowMs()
	b := c.bucketFor(id.Bucket())
	infoCopy := info
	entry := &CacheEntry{ResourceID: id, ItemInfo: &infoCopy, CreationTimeMs: now, ItemInfoUpdateTimeMs: now}
	if id.IsBucket() {
		return b.SetBucketEntry(entry)
	}
	return b.Put(entry)
}

// GetEntry returns the entry for id, or nil if absent or hard-expired.
func (c *ProcessLocal) GetEntry(id path.ResourceID) (*CacheEntry, error) {
	if id.IsRoot() {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[id.Bucket()]
	if !ok {
		return nil, nil
	}

	var entry *CacheEntry
	var err error
	if id.IsBucket() {
		entry = b.BucketEntry()
	} else {
		entry, err = b.Get(id)
	}
	if err != nil || entry == nil {
		return nil, err
	}
	if c.hardExpired(entry, c.nowMs()) {
		return nil, nil
	}
	return entry, nil
}

// RemoveResource drops the entry for id, if present.
func (c *ProcessLocal) RemoveResource(id path.ResourceID) error {
	if id.IsRoot() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[id.Bucket()]
	if !ok {
		return nil
	}
	if id.IsBucket() {
		return b.SetBucketEntry(nil)
	}
	return b.Remove(id)
}

// GetBucketList returns every known bucket's own cache row, excluding
// hard-expired ones.
func (c *ProcessLocal) GetBucketList() ([]*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowMs()
	var out []*CacheEntry
	for _, b := range c.buckets {
		if e := b.BucketEntry(); e != nil && !c.hardExpired(e, now) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetObjectList returns every non-hard-expired object-level entry for
// bucket.
func (c *ProcessLocal) GetObjectList(bucket string) ([]*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[bucket]
	if !ok {
		return nil, nil
	}
	now := c.nowMs()
	var out []*CacheEntry
	for _, e := range b.List() {
		if !c.hardExpired(e, now) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Sweep garbage-collects expired entries in a single pass, returning the
// number removed. A bucket whose own row has expired is dropped together
// with all its object entries, so from the caller's perspective it
// disappears atomically with its children.
func (c *ProcessLocal) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowMs()
	removed := 0
	for name, b := range c.buckets {
		if e := b.BucketEntry(); e != nil && c.hardExpired(e, now) {
			removed += 1 + b.Len()
			delete(c.buckets, name)
			continue
		}
		for _, e := range b.List() {
			if c.hardExpired(e, now) {
				_ = b.Remove(e.ResourceID)
				removed++
			}
		}
		if b.BucketEntry() == nil && b.Len() == 0 {
			delete(c.buckets, name)
		}
	}
	return removed
}
