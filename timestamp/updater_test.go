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

package timestamp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/gcsio-go/clock"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs/gcsfake"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
	"github.com/GoogleCloudPlatform/gcsio-go/timestamp"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestUpdater_UpdatesParentMtime(t *testing.T) {
	ctx := context.Background()
	fake := gcsfake.NewClient()
	fake.CreateBucket("b", "US", "STANDARD")

	parent := path.NewObject("b", "dir/")
	w, err := fake.CreateWriter(ctx, parent, gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	u, err := timestamp.New(fake, timestamp.Config{Workers: 1}, clock.RealClock{}, nil)
	require.NoError(t, err)
	defer u.Close(time.Second)

	child := path.NewObject("b", "dir/file")
	u.Enqueue(timestamp.Task{ModifiedPaths: []path.ResourceID{child}})

	waitFor(t, func() bool {
		info, err := fake.GetInfo(ctx, parent)
		require.NoError(t, err)
		_, ok := info.Metadata[gcs.MtimeMetadataKey]
		return ok
	})
}

func TestUpdater_ExcludedParentIsSkipped(t *testing.T) {
	ctx := context.Background()
	fake := gcsfake.NewClient()
	fake.CreateBucket("b", "US", "STANDARD")

	parent := path.NewObject("b", "dir/")
	w, err := fake.CreateWriter(ctx, parent, gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	u, err := timestamp.New(fake, timestamp.Config{Workers: 1}, clock.RealClock{}, nil)
	require.NoError(t, err)

	child := path.NewObject("b", "dir/file")
	u.Enqueue(timestamp.Task{
		ModifiedPaths:   []path.ResourceID{child},
		ExcludedParents: []path.ResourceID{parent},
	})
	u.Close(time.Second)

	info, err := fake.GetInfo(ctx, parent)
	require.NoError(t, err)
	_, ok := info.Metadata[gcs.MtimeMetadataKey]
	assert.False(t, ok, "excluded parent should not have been updated")
}

func TestUpdater_BucketAndRootParentsAreSkipped(t *testing.T) {
	fake := gcsfake.NewClient()
	fake.CreateBucket("b", "US", "STANDARD")

	u, err := timestamp.New(fake, timestamp.Config{Workers: 1}, clock.RealClock{}, nil)
	require.NoError(t, err)

	// A top-level object's parent is the bucket itself; UpdateItems on a
	// bucket-kind resourceID would be invalid, so it must never be
	// attempted.
	top := path.NewObject("b", "file")
	u.Enqueue(timestamp.Task{ModifiedPaths: []path.ResourceID{top}})
	u.Close(time.Second)
}

func TestFilter_IncludesExcludes(t *testing.T) {
	ctx := context.Background()
	fake := gcsfake.NewClient()
	fake.CreateBucket("b", "US", "STANDARD")

	parent := path.NewObject("b", "skip/")
	w, err := fake.CreateWriter(ctx, parent, gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	u, err := timestamp.New(fake, timestamp.Config{Workers: 1, Excludes: []string{"skip"}}, clock.RealClock{}, nil)
	require.NoError(t, err)

	child := path.NewObject("b", "skip/file")
	u.Enqueue(timestamp.Task{ModifiedPaths: []path.ResourceID{child}})
	u.Close(time.Second)

	info, err := fake.GetInfo(ctx, parent)
	require.NoError(t, err)
	_, ok := info.Metadata[gcs.MtimeMetadataKey]
	assert.False(t, ok)
}
