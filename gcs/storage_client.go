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

package gcs

import (
	"context"
	"errors"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/GoogleCloudPlatform/gcsio-go/common"
	"github.com/GoogleCloudPlatform/gcsio-go/fserrors"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// maxFanOut bounds how many RPCs a batch operation issues concurrently,
// keeping us within the underlying connection pool's budget.
const maxFanOut = 16

// RealClient is the Client implementation backed by an actual
// cloud.google.com/go/storage.Client. Every RPC except the bucket and
// object listings and the writes of a CreateWriter writer is wrapped with
// ExecuteWithRetry using Retry; those are not retried here.
type RealClient struct {
	raw     *storage.Client
	Retry   RetryConfig
	metrics common.MetricHandle

	// WriteChunkSize, when positive, is applied to every writer this
	// client creates (cfg.WriteChunkSize, already rounded to a multiple
	// of 8 MiB by validation).
	WriteChunkSize int
}

// NewRealClient wraps an already-constructed *storage.Client, constructed
// and authenticated by an external adapter layer. A nil metrics handle
// defaults to a no-op.
func NewRealClient(raw *storage.Client, metrics common.MetricHandle) *RealClient {
	if metrics == nil {
		metrics = common.NewNoopMetrics()
	}
	c := &RealClient{raw: raw, Retry: DefaultRetryConfig(), metrics: metrics}
	c.Retry.OnRetry = func(error) {
		metrics.GCSRetryCount(context.Background(), 1, nil)
	}
	return c
}

func (c *RealClient) bucket(name string) *storage.BucketHandle {
	return c.raw.Bucket(name)
}

// capture records the request count/latency pair for one RPC method.
func (c *RealClient) capture(ctx context.Context, method string, start time.Time) {
	attrs := []common.MetricAttr{{Key: common.AttrMethod, Value: method}}
	c.metrics.GCSRequestCount(ctx, 1, attrs)
	c.metrics.GCSRequestLatency(ctx, time.Since(start), attrs)
}

func (c *RealClient) GetInfo(ctx context.Context, id path.ResourceID) (ItemInfo, error) {
	defer c.capture(ctx, "GetInfo", time.Now())

	if id.IsBucket() {
		attrs, err := ExecuteWithRetry(ctx, c.Retry, func(ctx context.Context) (*storage.BucketAttrs, error) {
			return c.bucket(id.Bucket()).Attrs(ctx)
		})
		if err != nil {
			var nf *NotFoundError
			if errors.As(GetGCSError(err), &nf) {
				return NotFound(id), nil
			}
			return ItemInfo{}, ToFSError(err)
		}
		return bucketAttrsToItemInfo(id, attrs), nil
	}

	attrs, err := ExecuteWithRetry(ctx, c.Retry, func(ctx context.Context) (*storage.ObjectAttrs, error) {
		return c.bucket(id.Bucket()).Object(id.Object()).Attrs(ctx)
	})
	if err != nil {
		var nf *NotFoundError
		if errors.As(GetGCSError(err), &nf) {
			return NotFound(id), nil
		}
		return ItemInfo{}, ToFSError(err)
	}
	return objectAttrsToItemInfo(id, attrs), nil
}

func (c *RealClient) GetInfos(ctx context.Context, ids []path.ResourceID) ([]ItemInfo, error) {
	return fanOut(ctx, ids, func(ctx context.Context, id path.ResourceID) (ItemInfo, error) {
		return c.GetInfo(ctx, id)
	})
}

func (c *RealClient) ListBucketNames(ctx context.Context) ([]string, error) {
	infos, err := c.ListBucketInfos(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.ResourceID.Bucket()
	}
	return names, nil
}

func (c *RealClient) ListBucketInfos(ctx context.Context) ([]ItemInfo, error) {
	defer c.capture(ctx, "ListBucketInfos", time.Now())

	projectID := "" // project scoping is resolved by the out-of-scope adapter's client construction.
	it := c.raw.Buckets(ctx, projectID)
	var infos []ItemInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, ToFSError(err)
		}
		id := path.NewBucket(attrs.Name)
		infos = append(infos, bucketAttrsToItemInfo(id, attrs))
	}
	return infos, nil
}

func (c *RealClient) ListObjectNames(ctx context.Context, bucket, prefix, delimiter string) ([]string, error) {
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

func (c *RealClient) ListObjectInfos(ctx context.Context, bucket, prefix, delimiter string) ([]ItemInfo, error) {
	defer c.capture(ctx, "ListObjectInfos", time.Now())

	it := c.bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: delimiter})
	var infos []ItemInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, ToFSError(err)
		}
		if attrs.Prefix != "" {
			id := path.NewObject(bucket, attrs.Prefix)
			infos = append(infos, InferredDirectory(id))
			continue
		}
		id := path.NewObject(bucket, attrs.Name)
		infos = append(infos, objectAttrsToItemInfo(id, attrs))
	}
	return infos, nil
}

func (c *RealClient) CreateWriter(ctx context.Context, id path.ResourceID, opts CreateObjectOptions) (io.WriteCloser, error) {
	obj := c.bucket(id.Bucket()).Object(id.Object())
	if !opts.OverwriteExisting {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = opts.Metadata
	if c.WriteChunkSize > 0 {
		w.ChunkSize = c.WriteChunkSize
	}
	return &taxonomyWriter{raw: w}, nil
}

// taxonomyWriter maps the SDK writer's errors into the fserrors taxonomy,
// so a failed if-not-exists precondition surfaces to callers as
// FailedPrecondition the same way every other RPC's errors do.
type taxonomyWriter struct {
	raw *storage.Writer
}

func (w *taxonomyWriter) Write(p []byte) (int, error) {
	n, err := w.raw.Write(p)
	if err != nil {
		return n, ToFSError(err)
	}
	return n, nil
}

func (w *taxonomyWriter) Close() error {
	if err := w.raw.Close(); err != nil {
		return ToFSError(err)
	}
	return nil
}

func (c *RealClient) OpenReader(ctx context.Context, id path.ResourceID, opts ReadOptions) (io.ReadCloser, error) {
	defer c.capture(ctx, "OpenReader", time.Now())

	r, err := ExecuteWithRetry(ctx, c.Retry, func(ctx context.Context) (*storage.Reader, error) {
		return c.bucket(id.Bucket()).Object(id.Object()).NewRangeReader(ctx, opts.Offset, -1)
	})
	if err != nil {
		return nil, ToFSError(err)
	}
	return r, nil
}

func (c *RealClient) CreateEmpty(ctx context.Context, ids []path.ResourceID) error {
	defer c.capture(ctx, "CreateEmpty", time.Now())

	_, err := fanOut(ctx, ids, func(ctx context.Context, id path.ResourceID) (struct{}, error) {
		return struct{}{}, c.createEmptyOne(ctx, id)
	})
	return err
}

func (c *RealClient) createEmptyOne(ctx context.Context, id path.ResourceID) error {
	_, err := ExecuteWithRetry(ctx, c.Retry, func(ctx context.Context) (struct{}, error) {
		w := c.bucket(id.Bucket()).Object(id.Object()).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
		w.ContentType = "application/octet-stream"
		if closeErr := w.Close(); closeErr != nil {
			return struct{}{}, closeErr
		}
		return struct{}{}, nil
	})
	if err == nil {
		return nil
	}

	// A precondition conflict (the object already exists, as when a retried
	// 429 follows an attempt that landed) counts as success when the existing
	// object is zero-byte; its metadata is not compared. A 429 itself is
	// retried as transient and propagated once the retry budget is spent.
	var pre *PreconditionError
	isConflict := errors.As(GetGCSError(err), &pre)
	if !isConflict {
		return ToFSError(err)
	}

	info, infoErr := c.GetInfo(ctx, id)
	if infoErr != nil {
		return ToFSError(err)
	}
	if info.Exists && info.Size == 0 {
		return nil
	}
	return ToFSError(err)
}

func (c *RealClient) Copy(ctx context.Context, srcs, dsts []path.ResourceID) ([]int, error) {
	defer c.capture(ctx, "Copy", time.Now())

	if len(srcs) != len(dsts) {
		return nil, errors.New("gcs: Copy: srcs and dsts length mismatch")
	}

	type result struct {
		idx int
		err error
	}
	results := make(chan result, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for i := range srcs {
		i := i
		g.Go(func() error {
			_, err := ExecuteWithRetry(gctx, c.Retry, func(ctx context.Context) (struct{}, error) {
				src := c.bucket(srcs[i].Bucket()).Object(srcs[i].Object())
				dst := c.bucket(dsts[i].Bucket()).Object(dsts[i].Object()).If(storage.Conditions{DoesNotExist: true})
				_, copyErr := dst.CopierFrom(src).Run(ctx)
				return struct{}{}, copyErr
			})
			results <- result{idx: i, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	var failed []int
	for r := range results {
		if r.err != nil {
			failed = append(failed, r.idx)
		}
	}
	if len(failed) > 0 {
		return failed, nil
	}
	return nil, nil
}

func (c *RealClient) Delete(ctx context.Context, reqs []DeleteRequest) error {
	defer c.capture(ctx, "Delete", time.Now())

	_, err := fanOut(ctx, reqs, func(ctx context.Context, req DeleteRequest) (struct{}, error) {
		_, err := ExecuteWithRetry(ctx, c.Retry, func(ctx context.Context) (struct{}, error) {
			obj := c.bucket(req.ResourceID.Bucket()).Object(req.ResourceID.Object())
			if req.GenerationPrecond != 0 {
				obj = obj.If(storage.Conditions{GenerationMatch: req.GenerationPrecond})
			}
			delErr := obj.Delete(ctx)
			if errors.Is(delErr, storage.ErrObjectNotExist) {
				return struct{}{}, nil
			}
			return struct{}{}, delErr
		})
		return struct{}{}, err
	})
	return err
}

func (c *RealClient) DeleteBuckets(ctx context.Context, names []string) error {
	defer c.capture(ctx, "DeleteBuckets", time.Now())

	for _, name := range names {
		_, err := ExecuteWithRetry(ctx, c.Retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.bucket(name).Delete(ctx)
		})
		if err != nil {
			return ToFSError(err)
		}
	}
	return nil
}

func (c *RealClient) WaitForBucketEmpty(ctx context.Context, bucket string) error {
	infos, err := c.ListObjectInfos(ctx, bucket, "", "")
	if err != nil {
		return err
	}
	if len(infos) != 0 {
		return fserrors.NewDirectoryNotEmpty("bucket %q is not empty", bucket)
	}
	return nil
}

func (c *RealClient) UpdateItems(ctx context.Context, updates []ItemUpdate) error {
	defer c.capture(ctx, "UpdateItems", time.Now())

	_, err := fanOut(ctx, updates, func(ctx context.Context, u ItemUpdate) (struct{}, error) {
		_, err := ExecuteWithRetry(ctx, c.Retry, func(ctx context.Context) (struct{}, error) {
			metadata := make(map[string]string, len(u.AttributeDelta))
			for k, v := range u.AttributeDelta {
				metadata[k] = v
			}
			obj := c.bucket(u.ResourceID.Bucket()).Object(u.ResourceID.Object())
			if u.GenerationPrecond != 0 {
				obj = obj.If(storage.Conditions{GenerationMatch: u.GenerationPrecond})
			}
			_, updErr := obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: metadata})
			return struct{}{}, updErr
		})
		return struct{}{}, err
	})
	return err
}

func (c *RealClient) Compose(ctx context.Context, bucket string, sources []string, dest string, contentType string) error {
	defer c.capture(ctx, "Compose", time.Now())

	srcHandles := make([]*storage.ObjectHandle, len(sources))
	for i, name := range sources {
		srcHandles[i] = c.bucket(bucket).Object(name)
	}
	dstHandle := c.bucket(bucket).Object(dest)

	_, err := ExecuteWithRetry(ctx, c.Retry, func(ctx context.Context) (struct{}, error) {
		composer := dstHandle.ComposerFrom(srcHandles...)
		composer.ContentType = contentType
		_, composeErr := composer.Run(ctx)
		return struct{}{}, composeErr
	})
	if err != nil {
		return ToFSError(err)
	}
	return nil
}

func bucketAttrsToItemInfo(id path.ResourceID, attrs *storage.BucketAttrs) ItemInfo {
	return ItemInfo{
		ResourceID:     id,
		Exists:         true,
		BucketLocation: attrs.Location,
		StorageClass:   attrs.StorageClass,
	}
}

func objectAttrsToItemInfo(id path.ResourceID, attrs *storage.ObjectAttrs) ItemInfo {
	metadata := make(map[string][]byte, len(attrs.Metadata))
	for k, v := range attrs.Metadata {
		metadata[k] = []byte(v)
	}
	return ItemInfo{
		ResourceID:         id,
		Exists:             true,
		Size:               attrs.Size,
		CreationTimeMillis: attrs.Created.UnixMilli(),
		Generation:         attrs.Generation,
		ContentType:        attrs.ContentType,
		Metadata:           metadata,
		StorageClass:       attrs.StorageClass,
	}
}

// fanOut runs fn over items concurrently (bounded by maxFanOut), preserving
// input order in the returned slice.
func fanOut[I any, O any](ctx context.Context, items []I, fn func(context.Context, I) (O, error)) ([]O, error) {
	results := make([]O, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for i := range items {
		i := i
		g.Go(func() error {
			out, err := fn(gctx, items[i])
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
