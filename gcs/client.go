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
	"io"

	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// Client is the object store client contract: typed operations over the
// flat store. The cache-supplemented client
// (cache/caching.FastStatBucket) wraps one Client; the real
// implementation (RealClient, see storage_client.go) and the in-memory
// gcsfake.Client both satisfy it.
type Client interface {
	GetInfo(ctx context.Context, id path.ResourceID) (ItemInfo, error)
	GetInfos(ctx context.Context, ids []path.ResourceID) ([]ItemInfo, error)

	ListBucketNames(ctx context.Context) ([]string, error)
	ListBucketInfos(ctx context.Context) ([]ItemInfo, error)

	// ListObjectNames and ListObjectInfos take an optional delimiter; with
	// one, returned names have depth 1 relative to prefix, otherwise the
	// listing is fully recursive.
	ListObjectNames(ctx context.Context, bucket, prefix, delimiter string) ([]string, error)
	ListObjectInfos(ctx context.Context, bucket, prefix, delimiter string) ([]ItemInfo, error)

	CreateWriter(ctx context.Context, id path.ResourceID, opts CreateObjectOptions) (io.WriteCloser, error)
	OpenReader(ctx context.Context, id path.ResourceID, opts ReadOptions) (io.ReadCloser, error)

	// CreateEmpty idempotently creates zero-byte objects. When a create
	// conflicts with an existing object it refetches and succeeds silently
	// if that object is zero-byte (its metadata is not compared); otherwise
	// it propagates the error.
	CreateEmpty(ctx context.Context, ids []path.ResourceID) error

	// Copy is positional; on partial failure it returns the indices that
	// failed, leaving retry policy to the caller.
	Copy(ctx context.Context, srcs, dsts []path.ResourceID) (failed []int, err error)

	// Delete carries a generation-match precondition per item, taken from
	// the most recent info, so a delete can't clobber a concurrent
	// overwrite of the same name.
	Delete(ctx context.Context, reqs []DeleteRequest) error
	DeleteBuckets(ctx context.Context, names []string) error
	WaitForBucketEmpty(ctx context.Context, bucket string) error

	UpdateItems(ctx context.Context, updates []ItemUpdate) error

	Compose(ctx context.Context, bucket string, sources []string, dest string, contentType string) error
}
