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

// Package caching implements a cache-supplemented client: FastStatBucket
// layers a cache.Backend onto a gcs.Client. Every successful mutation
// writes through to the cache before returning; every listing is unioned
// with cache entries not already present in the store's response,
// masking eventual-consistency read-your-writes gaps.
package caching

import (
	"context"
	"io"

	"github.com/GoogleCloudPlatform/gcsio-go/cache"
	"github.com/GoogleCloudPlatform/gcsio-go/clock"
	"github.com/GoogleCloudPlatform/gcsio-go/common"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// FastStatBucket wraps a gcs.Client with a cache.Backend, satisfying
// gcs.Client itself so the facade can hold a single handle regardless of
// whether caching is enabled. The cache wraps the client and the facade
// holds only the outermost layer; nothing points back down the stack.
type FastStatBucket struct {
	client  gcs.Client
	backend cache.Backend
	clk     clock.Clock
	cfg     cache.Config
	metrics common.MetricHandle
}

var _ gcs.Client = (*FastStatBucket)(nil)

// New wraps client with backend. A nil clk defaults to clock.RealClock{};
// a nil metrics handle defaults to a no-op.
func New(client gcs.Client, backend cache.Backend, cfg cache.Config, clk clock.Clock, metrics common.MetricHandle) *FastStatBucket {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if metrics == nil {
		metrics = common.NewNoopMetrics()
	}
	return &FastStatBucket{client: client, backend: backend, clk: clk, cfg: cfg, metrics: metrics}
}

// cachedInfo returns a trustworthy cached ItemInfo for id, if one exists
// and is not stale per MaxInfoAge.
func (f *FastStatBucket) cachedInfo(ctx context.Context, id path.ResourceID) (gcs.ItemInfo, bool) {
	f.metrics.CacheLookupCount(ctx, 1, nil)

	entry, err := f.backend.GetEntry(id)
	if err != nil || entry == nil || entry.ItemInfo == nil {
		return gcs.ItemInfo{}, false
	}
	if f.cfg.MaxInfoAge > 0 && entry.InfoAge(f.clk.Now().UnixMilli()) > f.cfg.MaxInfoAge {
		return gcs.ItemInfo{}, false
	}
	f.metrics.CacheHitCount(ctx, 1, nil)
	return *entry.ItemInfo, true
}

func (f *FastStatBucket) cachePutInfo(id path.ResourceID, info gcs.ItemInfo) {
	_ = f.backend.PutResourceInfo(id, info)
}

func (f *FastStatBucket) cachePutExists(id path.ResourceID) {
	_ = f.backend.PutResource(id)
}

func (f *FastStatBucket) cacheRemove(id path.ResourceID) {
	_ = f.backend.RemoveResource(id)
}

// GetInfo consults the cache before delegating; a hit on fresh ItemInfo
// never reaches the underlying client.
func (f *FastStatBucket) GetInfo(ctx context.Context, id path.ResourceID) (gcs.ItemInfo, error) {
	if info, ok := f.cachedInfo(ctx, id); ok {
		return info, nil
	}
	info, err := f.client.GetInfo(ctx, id)
	if err != nil {
		return gcs.ItemInfo{}, err
	}
	if info.Exists {
		f.cachePutInfo(id, info)
	}
	return info, nil
}

// GetInfos fetches only the positions missing a trustworthy cache entry,
// preserving input order.
func (f *FastStatBucket) GetInfos(ctx context.Context, ids []path.ResourceID) ([]gcs.ItemInfo, error) {
	infos := make([]gcs.ItemInfo, len(ids))
	var missing []int
	for i, id := range ids {
		if info, ok := f.cachedInfo(ctx, id); ok {
			infos[i] = info
		} else {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return infos, nil
	}

	missingIDs := make([]path.ResourceID, len(missing))
	for j, i := range missing {
		missingIDs[j] = ids[i]
	}
	fetched, err := f.client.GetInfos(ctx, missingIDs)
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		infos[i] = fetched[j]
		if fetched[j].Exists {
			f.cachePutInfo(ids[i], fetched[j])
		}
	}
	return infos, nil
}

func (f *FastStatBucket) ListBucketNames(ctx context.Context) ([]string, error) {
	infos, err := f.ListBucketInfos(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.ResourceID.Bucket()
	}
	return names, nil
}

// ListBucketInfos unions the store's listing with cached bucket entries
// not already present, deduplicated by resourceId.
func (f *FastStatBucket) ListBucketInfos(ctx context.Context) ([]gcs.ItemInfo, error) {
	infos, err := f.client.ListBucketInfos(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.ResourceID.String()] = true
	}

	cached, err := f.backend.GetBucketList()
	if err != nil {
		return nil, err
	}
	for _, entry := range cached {
		if seen[entry.ResourceID.String()] {
			continue
		}
		if entry.ItemInfo != nil {
			infos = append(infos, *entry.ItemInfo)
		} else {
			infos = append(infos, gcs.ItemInfo{ResourceID: entry.ResourceID, Exists: true})
		}
		seen[entry.ResourceID.String()] = true
	}
	return infos, nil
}

func (f *FastStatBucket) ListObjectNames(ctx context.Context, bucket, prefix, delimiter string) ([]string, error) {
	infos, err := f.ListObjectInfos(ctx, bucket, prefix, delimiter)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.ResourceID.Object()
	}
	return names, nil
}

// ListObjectInfos unions the store's listing with cached object entries
// under the same prefix/delimiter scope.
func (f *FastStatBucket) ListObjectInfos(ctx context.Context, bucket, prefix, delimiter string) ([]gcs.ItemInfo, error) {
	infos, err := f.client.ListObjectInfos(ctx, bucket, prefix, delimiter)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.ResourceID.String()] = true
	}

	cached, err := f.backend.GetObjectList(bucket)
	if err != nil {
		return nil, err
	}
	for _, entry := range cached {
		name := entry.ResourceID.Object()
		if !withinScope(name, prefix, delimiter) {
			continue
		}
		if seen[entry.ResourceID.String()] {
			continue
		}
		if entry.ItemInfo != nil {
			infos = append(infos, *entry.ItemInfo)
		} else {
			infos = append(infos, gcs.ItemInfo{ResourceID: entry.ResourceID, Exists: true})
		}
		seen[entry.ResourceID.String()] = true
	}
	return infos, nil
}

// withinScope reports whether name belongs in a prefix/delimiter-scoped
// listing the way the store itself would decide it: it must start with
// prefix, and (when a delimiter is set) the remainder must contain no
// further delimiter, except that a name equal to a direct child directory
// prefix is allowed through too.
func withinScope(name, prefix, delimiter string) bool {
	if len(name) < len(prefix) || name[:len(prefix)] != prefix {
		return false
	}
	if delimiter == "" {
		return true
	}
	rest := name[len(prefix):]
	rest = trimOneTrailingDelimiter(rest, delimiter)
	return !containsDelimiter(rest, delimiter)
}

func trimOneTrailingDelimiter(s, delimiter string) string {
	if len(s) >= len(delimiter) && s[len(s)-len(delimiter):] == delimiter {
		return s[:len(s)-len(delimiter)]
	}
	return s
}

func containsDelimiter(s, delimiter string) bool {
	for i := 0; i+len(delimiter) <= len(s); i++ {
		if s[i:i+len(delimiter)] == delimiter {
			return true
		}
	}
	return false
}

func (f *FastStatBucket) CreateWriter(ctx context.Context, id path.ResourceID, opts gcs.CreateObjectOptions) (io.WriteCloser, error) {
	w, err := f.client.CreateWriter(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	return &cachingWriter{WriteCloser: w, bucket: f, ctx: ctx, id: id}, nil
}

// cachingWriter puts a minimal existence entry into the cache once the
// underlying write commits successfully, before Close returns to the
// caller.
type cachingWriter struct {
	io.WriteCloser
	bucket *FastStatBucket
	ctx    context.Context
	id     path.ResourceID
}

func (w *cachingWriter) Close() error {
	if err := w.WriteCloser.Close(); err != nil {
		return err
	}
	w.bucket.cachePutExists(w.id)
	return nil
}

func (f *FastStatBucket) OpenReader(ctx context.Context, id path.ResourceID, opts gcs.ReadOptions) (io.ReadCloser, error) {
	return f.client.OpenReader(ctx, id, opts)
}

// Sweep garbage-collects expired cache entries and records how many were
// evicted. Intended to be called periodically by whoever owns the
// FastStatBucket; entries also expire lazily when consulted, so skipping
// sweeps costs memory, not correctness.
func (f *FastStatBucket) Sweep(ctx context.Context) {
	if removed := f.backend.Sweep(); removed > 0 {
		f.metrics.CacheEvictionCount(ctx, int64(removed), nil)
	}
}

func (f *FastStatBucket) CreateEmpty(ctx context.Context, ids []path.ResourceID) error {
	if err := f.client.CreateEmpty(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		f.cachePutExists(id)
	}
	return nil
}

func (f *FastStatBucket) Copy(ctx context.Context, srcs, dsts []path.ResourceID) ([]int, error) {
	failed, err := f.client.Copy(ctx, srcs, dsts)
	if err != nil {
		return failed, err
	}
	failedSet := make(map[int]bool, len(failed))
	for _, i := range failed {
		failedSet[i] = true
	}
	for i, dst := range dsts {
		if !failedSet[i] {
			f.cachePutExists(dst)
		}
	}
	return failed, nil
}

func (f *FastStatBucket) Delete(ctx context.Context, reqs []gcs.DeleteRequest) error {
	if err := f.client.Delete(ctx, reqs); err != nil {
		return err
	}
	for _, req := range reqs {
		f.cacheRemove(req.ResourceID)
	}
	return nil
}

func (f *FastStatBucket) DeleteBuckets(ctx context.Context, names []string) error {
	if err := f.client.DeleteBuckets(ctx, names); err != nil {
		return err
	}
	for _, name := range names {
		f.cacheRemove(path.NewBucket(name))
	}
	return nil
}

func (f *FastStatBucket) WaitForBucketEmpty(ctx context.Context, bucket string) error {
	return f.client.WaitForBucketEmpty(ctx, bucket)
}

// UpdateItems delegates, then invalidates the touched entries rather than
// trying to merge the delta locally: the next GetInfo re-fetches fresh
// metadata, which is simpler and still correct since updates are rare
// relative to reads.
func (f *FastStatBucket) UpdateItems(ctx context.Context, updates []gcs.ItemUpdate) error {
	if err := f.client.UpdateItems(ctx, updates); err != nil {
		return err
	}
	for _, u := range updates {
		f.cacheRemove(u.ResourceID)
	}
	return nil
}

func (f *FastStatBucket) Compose(ctx context.Context, bucket string, sources []string, dest string, contentType string) error {
	if err := f.client.Compose(ctx, bucket, sources, dest, contentType); err != nil {
		return err
	}
	f.cachePutExists(path.NewObject(bucket, dest))
	return nil
}
