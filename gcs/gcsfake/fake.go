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

// Package gcsfake provides an in-memory implementation of gcs.Client for
// tests, in lieu of talking to a real bucket.
package gcsfake

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/gcsio-go/fserrors"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

type fakeObject struct {
	data               []byte
	generation         int64
	creationTimeMillis int64
	contentType        string
	metadata           map[string][]byte
}

type fakeBucket struct {
	location     string
	storageClass string
	objects      map[string]*fakeObject
}

// Client is an in-memory gcs.Client. The zero value is ready to use.
// Clock defaults to time.Now when unset.
type Client struct {
	mu      sync.Mutex
	buckets map[string]*fakeBucket
	nextGen int64
	Clock   func() time.Time
}

var _ gcs.Client = (*Client)(nil)

// NewClient returns an empty Client. Buckets must be created via
// CreateBucket before objects can be written to them.
func NewClient() *Client {
	return &Client{buckets: make(map[string]*fakeBucket)}
}

// CreateBucket registers an empty bucket, for test setup.
func (c *Client) CreateBucket(name, location, storageClass string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buckets == nil {
		c.buckets = make(map[string]*fakeBucket)
	}
	c.buckets[name] = &fakeBucket{location: location, storageClass: storageClass, objects: make(map[string]*fakeObject)}
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Client) bucket(name string) (*fakeBucket, bool) {
	b, ok := c.buckets[name]
	return b, ok
}

func (c *Client) GetInfo(ctx context.Context, id path.ResourceID) (gcs.ItemInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id.IsRoot() {
		return gcs.ItemInfo{ResourceID: id, Exists: true}, nil
	}

	b, ok := c.bucket(id.Bucket())
	if !ok {
		return gcs.NotFound(id), nil
	}
	if id.IsBucket() {
		return gcs.ItemInfo{ResourceID: id, Exists: true, BucketLocation: b.location, StorageClass: b.storageClass}, nil
	}

	obj, ok := b.objects[id.Object()]
	if !ok {
		return gcs.NotFound(id), nil
	}
	return toItemInfo(id, obj, b.storageClass), nil
}

func (c *Client) GetInfos(ctx context.Context, ids []path.ResourceID) ([]gcs.ItemInfo, error) {
	infos := make([]gcs.ItemInfo, len(ids))
	for i, id := range ids {
		info, err := c.GetInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}
	return infos, nil
}

func (c *Client) ListBucketNames(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) ListBucketInfos(ctx context.Context) ([]gcs.ItemInfo, error) {
	c.mu.Lock()
	names := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	infos := make([]gcs.ItemInfo, 0, len(names))
	for _, name := range names {
		b := c.buckets[name]
		infos = append(infos, gcs.ItemInfo{ResourceID: path.NewBucket(name), Exists: true, BucketLocation: b.location, StorageClass: b.storageClass})
	}
	c.mu.Unlock()
	return infos, nil
}

func (c *Client) ListObjectNames(ctx context.Context, bucket, prefix, delimiter string) ([]string, error) {
	infos, err := c.ListObjectInfos(ctx, bucket, prefix, delimiter)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.ResourceID.Object()
	}
	return names, nil
}

func (c *Client) ListObjectInfos(ctx context.Context, bucket, prefix, delimiter string) ([]gcs.ItemInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bucket(bucket)
	if !ok {
		return nil, fserrors.NewNotFound("bucket %q not found", bucket)
	}

	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		names = append(names, name)
	}
	sort.Strings(names)

	var infos []gcs.ItemInfo
	seenPrefixes := make(map[string]bool)
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				dirPrefix := prefix + rest[:idx+len(delimiter)]
				if !seenPrefixes[dirPrefix] {
					seenPrefixes[dirPrefix] = true
					infos = append(infos, gcs.InferredDirectory(path.NewObject(bucket, dirPrefix)))
				}
				continue
			}
		}
		id := path.NewObject(bucket, name)
		infos = append(infos, toItemInfo(id, b.objects[name], b.storageClass))
	}
	return infos, nil
}

func (c *Client) CreateWriter(ctx context.Context, id path.ResourceID, opts gcs.CreateObjectOptions) (io.WriteCloser, error) {
	c.mu.Lock()
	b, ok := c.bucket(id.Bucket())
	if !ok {
		c.mu.Unlock()
		return nil, fserrors.NewNotFound("bucket %q not found", id.Bucket())
	}
	if !opts.OverwriteExisting {
		if _, exists := b.objects[id.Object()]; exists {
			c.mu.Unlock()
			return nil, fserrors.NewFailedPrecondition(nil, "object %q already exists", id.Object())
		}
	}
	c.mu.Unlock()

	return &fakeWriter{client: c, id: id, opts: opts}, nil
}

type fakeWriter struct {
	client *Client
	id     path.ResourceID
	opts   gcs.CreateObjectOptions
	buf    bytes.Buffer
}

func (w *fakeWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fakeWriter) Close() error {
	c := w.client
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bucket(w.id.Bucket())
	if !ok {
		return fserrors.NewNotFound("bucket %q not found", w.id.Bucket())
	}

	metadata := make(map[string][]byte, len(w.opts.Metadata))
	for k, v := range w.opts.Metadata {
		metadata[k] = []byte(v)
	}

	c.nextGen++
	b.objects[w.id.Object()] = &fakeObject{
		data:               append([]byte(nil), w.buf.Bytes()...),
		generation:         c.nextGen,
		creationTimeMillis: c.now().UnixMilli(),
		contentType:        w.opts.ContentType,
		metadata:           metadata,
	}
	return nil
}

func (c *Client) OpenReader(ctx context.Context, id path.ResourceID, opts gcs.ReadOptions) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bucket(id.Bucket())
	if !ok {
		return nil, fserrors.NewNotFound("bucket %q not found", id.Bucket())
	}
	obj, ok := b.objects[id.Object()]
	if !ok {
		return nil, fserrors.NewNotFound("object %q not found", id.Object())
	}
	if opts.Offset > int64(len(obj.data)) {
		return nil, fserrors.NewInvalidArgument("offset %d beyond object size %d", opts.Offset, len(obj.data))
	}
	return io.NopCloser(bytes.NewReader(obj.data[opts.Offset:])), nil
}

func (c *Client) CreateEmpty(ctx context.Context, ids []path.ResourceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		b, ok := c.bucket(id.Bucket())
		if !ok {
			return fserrors.NewNotFound("bucket %q not found", id.Bucket())
		}
		if existing, exists := b.objects[id.Object()]; exists {
			if len(existing.data) == 0 {
				continue
			}
			return fserrors.NewFailedPrecondition(nil, "object %q already exists", id.Object())
		}
		c.nextGen++
		b.objects[id.Object()] = &fakeObject{
			generation:         c.nextGen,
			creationTimeMillis: c.now().UnixMilli(),
			contentType:        "application/octet-stream",
			metadata:           map[string][]byte{},
		}
	}
	return nil
}

func (c *Client) Copy(ctx context.Context, srcs, dsts []path.ResourceID) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var failed []int
	for i := range srcs {
		srcBucket, ok := c.bucket(srcs[i].Bucket())
		if !ok {
			failed = append(failed, i)
			continue
		}
		obj, ok := srcBucket.objects[srcs[i].Object()]
		if !ok {
			failed = append(failed, i)
			continue
		}
		dstBucket, ok := c.bucket(dsts[i].Bucket())
		if !ok {
			failed = append(failed, i)
			continue
		}
		if _, exists := dstBucket.objects[dsts[i].Object()]; exists {
			failed = append(failed, i)
			continue
		}
		c.nextGen++
		copied := *obj
		copied.data = append([]byte(nil), obj.data...)
		copied.generation = c.nextGen
		dstBucket.objects[dsts[i].Object()] = &copied
	}
	if len(failed) > 0 {
		return failed, nil
	}
	return nil, nil
}

func (c *Client) Delete(ctx context.Context, reqs []gcs.DeleteRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, req := range reqs {
		b, ok := c.bucket(req.ResourceID.Bucket())
		if !ok {
			continue
		}
		obj, exists := b.objects[req.ResourceID.Object()]
		if !exists {
			continue
		}
		if req.GenerationPrecond != 0 && req.GenerationPrecond != obj.generation {
			return fserrors.NewFailedPrecondition(nil, "generation mismatch for %q", req.ResourceID.Object())
		}
		delete(b.objects, req.ResourceID.Object())
	}
	return nil
}

func (c *Client) DeleteBuckets(ctx context.Context, names []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range names {
		b, ok := c.bucket(name)
		if !ok {
			return fserrors.NewNotFound("bucket %q not found", name)
		}
		if len(b.objects) != 0 {
			return fserrors.NewDirectoryNotEmpty("bucket %q is not empty", name)
		}
		delete(c.buckets, name)
	}
	return nil
}

func (c *Client) WaitForBucketEmpty(ctx context.Context, bucket string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bucket(bucket)
	if !ok {
		return fserrors.NewNotFound("bucket %q not found", bucket)
	}
	if len(b.objects) != 0 {
		return fserrors.NewDirectoryNotEmpty("bucket %q is not empty", bucket)
	}
	return nil
}

func (c *Client) UpdateItems(ctx context.Context, updates []gcs.ItemUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range updates {
		b, ok := c.bucket(u.ResourceID.Bucket())
		if !ok {
			return fserrors.NewNotFound("bucket %q not found", u.ResourceID.Bucket())
		}
		obj, ok := b.objects[u.ResourceID.Object()]
		if !ok {
			return fserrors.NewNotFound("object %q not found", u.ResourceID.Object())
		}
		if u.GenerationPrecond != 0 && u.GenerationPrecond != obj.generation {
			return fserrors.NewFailedPrecondition(nil, "generation mismatch for %q", u.ResourceID.Object())
		}
		if obj.metadata == nil {
			obj.metadata = map[string][]byte{}
		}
		for k, v := range u.AttributeDelta {
			obj.metadata[k] = []byte(v)
		}
	}
	return nil
}

func (c *Client) Compose(ctx context.Context, bucket string, sources []string, dest string, contentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bucket(bucket)
	if !ok {
		return fserrors.NewNotFound("bucket %q not found", bucket)
	}

	var combined bytes.Buffer
	for _, src := range sources {
		obj, ok := b.objects[src]
		if !ok {
			return fserrors.NewNotFound("object %q not found", src)
		}
		combined.Write(obj.data)
	}

	c.nextGen++
	b.objects[dest] = &fakeObject{
		data:               combined.Bytes(),
		generation:         c.nextGen,
		creationTimeMillis: c.now().UnixMilli(),
		contentType:        contentType,
		metadata:           map[string][]byte{},
	}
	return nil
}

func toItemInfo(id path.ResourceID, obj *fakeObject, storageClass string) gcs.ItemInfo {
	return gcs.ItemInfo{
		ResourceID:         id,
		Exists:             true,
		Size:               int64(len(obj.data)),
		CreationTimeMillis: obj.creationTimeMillis,
		Generation:         obj.generation,
		ContentType:        obj.contentType,
		Metadata:           obj.metadata,
		StorageClass:       storageClass,
	}
}
