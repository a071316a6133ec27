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

// Package cache implements the directory list cache: a
// mapping from bucket name to CachedBucket, with two interchangeable
// backends (ProcessLocal, SharedFilesystem) behind the Backend contract.
// Entries carry a creation-time TTL (maxEntryAge, when the row itself is
// dropped) and an independent info-age TTL (maxInfoAge, when an attached
// ItemInfo must be refetched before being trusted).
package cache

import (
	"container/list"
	"errors"
	"fmt"
	"time"

	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// CacheEntry is one row of cached knowledge about a resource.
// ItemInfo nil means "known to exist at some time, details not yet
// fetched" rather than "absent".
type CacheEntry struct {
	ResourceID           path.ResourceID
	ItemInfo             *gcs.ItemInfo
	CreationTimeMs       int64
	ItemInfoUpdateTimeMs int64
}

// Age returns how long ago the entry was created, relative to nowMs.
func (e *CacheEntry) Age(nowMs int64) time.Duration {
	return time.Duration(nowMs-e.CreationTimeMs) * time.Millisecond
}

// InfoAge returns how long ago the attached ItemInfo was last refreshed.
// Meaningless when ItemInfo is nil: ItemInfoUpdateTimeMs is then zero, so
// the result is measured from the epoch.
func (e *CacheEntry) InfoAge(nowMs int64) time.Duration {
	return time.Duration(nowMs-e.ItemInfoUpdateTimeMs) * time.Millisecond
}

// Config bounds entry and info lifetimes.
type Config struct {
	// MaxEntryAge is how long a row survives before it is eligible for
	// eviction.
	MaxEntryAge time.Duration
	// MaxInfoAge is how long an attached ItemInfo may be trusted for a
	// negative-existence decision before it must be refetched.
	MaxInfoAge time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{MaxEntryAge: 4 * time.Hour, MaxInfoAge: 5 * time.Second}
}

// Backend is the capability set both cache implementations satisfy:
// ProcessLocal and SharedFilesystem. The cache-supplemented client
// (cache/caching) is written against this interface, not a concrete type.
type Backend interface {
	PutResource(id path.ResourceID) error
	PutResourceInfo(id path.ResourceID, info gcs.ItemInfo) error
	GetEntry(id path.ResourceID) (*CacheEntry, error)
	RemoveResource(id path.ResourceID) error
	GetBucketList() ([]*CacheEntry, error)
	GetObjectList(bucket string) ([]*CacheEntry, error)

	// Sweep garbage-collects expired entries in a single pass and reports
	// how many it removed.
	Sweep() int
}

// CachedBucket groups a bucket's own cache row with an insertion-ordered
// mapping from object name to CacheEntry. Insertion order is kept via
// container/list so that GetObjectList returns entries in a stable,
// age-correlated order.
//
// Put/Get/Remove reject a nil, Root, or Bucket-kind resourceId, and any
// resourceId whose bucket doesn't match Name; those belong to
// bucketEntry, set separately by the owning cache backend.
type CachedBucket struct {
	Name string

	bucketEntry *CacheEntry

	entries map[string]*list.Element
	order   *list.List
}

// NewCachedBucket returns an empty CachedBucket for the named bucket.
func NewCachedBucket(name string) *CachedBucket {
	return &CachedBucket{
		Name:    name,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (b *CachedBucket) validateObjectID(id path.ResourceID) error {
	if id.IsRoot() {
		return errors.New("cache: root resourceID is not valid for a CachedBucket entry")
	}
	if id.IsBucket() {
		return errors.New("cache: bucket-typed resourceID belongs to the bucket-level entry, not the object map")
	}
	if id.Bucket() != b.Name {
		return fmt.Errorf("cache: resourceID %s belongs to bucket %q, not %q", id, id.Bucket(), b.Name)
	}
	return nil
}

// Put inserts or replaces the entry for entry.ResourceID, moving it to the
// back of the insertion order on update.
func (b *CachedBucket) Put(entry *CacheEntry) error {
	if entry == nil {
		return errors.New("cache: nil entry")
	}
	if err := b.validateObjectID(entry.ResourceID); err != nil {
		return err
	}
	if entry.ItemInfo != nil && !entry.ItemInfo.ResourceID.Equal(entry.ResourceID) {
		return errors.New("cache: entry.ItemInfo.ResourceID does not match entry.ResourceID")
	}

	name := entry.ResourceID.Object()
	if el, ok := b.entries[name]; ok {
		el.Value = entry
		b.order.MoveToBack(el)
		return nil
	}
	b.entries[name] = b.order.PushBack(entry)
	return nil
}

// Get returns the entry for id, or nil if absent.
func (b *CachedBucket) Get(id path.ResourceID) (*CacheEntry, error) {
	if err := b.validateObjectID(id); err != nil {
		return nil, err
	}
	el, ok := b.entries[id.Object()]
	if !ok {
		return nil, nil
	}
	return el.Value.(*CacheEntry), nil
}

// Remove drops the entry for id, if present.
func (b *CachedBucket) Remove(id path.ResourceID) error {
	if err := b.validateObjectID(id); err != nil {
		return err
	}
	if el, ok := b.entries[id.Object()]; ok {
		b.order.Remove(el)
		delete(b.entries, id.Object())
	}
	return nil
}

// List returns every object-level entry, oldest-inserted first.
func (b *CachedBucket) List() []*CacheEntry {
	out := make([]*CacheEntry, 0, len(b.entries))
	for el := b.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*CacheEntry))
	}
	return out
}

// Len is the number of object-level entries.
func (b *CachedBucket) Len() int { return len(b.entries) }

// BucketEntry returns the cache row for the bucket itself (nil if the
// bucket's own existence has never been recorded).
func (b *CachedBucket) BucketEntry() *CacheEntry { return b.bucketEntry }

// SetBucketEntry records the bucket's own cache row. entry may be nil to
// clear it.
func (b *CachedBucket) SetBucketEntry(entry *CacheEntry) error {
	if entry != nil {
		if !entry.ResourceID.IsBucket() {
			return errors.New("cache: bucket-level entry must have a Bucket-kind resourceID")
		}
		if entry.ResourceID.Bucket() != b.Name {
			return fmt.Errorf("cache: bucket entry %s does not match CachedBucket %q", entry.ResourceID, b.Name)
		}
	}
	b.bucketEntry = entry
	return nil
}

// CheckInvariants panics if any of the CachedBucket invariants are
// violated. For tests and debugging, never called on the hot path.
func (b *CachedBucket) CheckInvariants() {
	if len(b.entries) != b.order.Len() {
		panic(fmt.Sprintf("cache: entries map has %d keys but order list has %d elements", len(b.entries), b.order.Len()))
	}
	for name, el := range b.entries {
		entry := el.Value.(*CacheEntry)
		if entry.ResourceID.Object() != name {
			panic(fmt.Sprintf("cache: entries[%q] holds resourceID %s", name, entry.ResourceID))
		}
		if entry.ResourceID.Bucket() != b.Name {
			panic(fmt.Sprintf("cache: entries[%q] belongs to bucket %q, not %q", name, entry.ResourceID.Bucket(), b.Name))
		}
	}
	if b.bucketEntry != nil && b.bucketEntry.ResourceID.Bucket() != b.Name {
		panic("cache: bucketEntry belongs to a different bucket")
	}
}
