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

package gcsfs_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/gcsio-go/cfg"
	"github.com/GoogleCloudPlatform/gcsio-go/fserrors"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs/gcsfake"
	"github.com/GoogleCloudPlatform/gcsio-go/gcsfs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

func newFS(t *testing.T) (*gcsfs.FileSystem, *gcsfake.Client) {
	t.Helper()
	fake := gcsfake.NewClient()
	fake.CreateBucket("b", "US", "STANDARD")

	config := cfg.Default()
	config.TimestampUpdates.Enabled = false

	fs, err := gcsfs.New(fake, config, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })
	return fs, fake
}

func objID(t *testing.T, bucket, object string) path.ResourceID {
	t.Helper()
	return path.NewObject(bucket, object)
}

func TestMkdirs_CreatesAllAncestorPlaceholders(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	require.NoError(t, fs.Mkdirs(ctx, "gs://b/a/b/c"))

	for _, want := range []string{"a/", "a/b/", "a/b/c/"} {
		info, err := fake.GetInfo(ctx, objID(t, "b", want))
		require.NoError(t, err)
		assert.True(t, info.Exists, "expected %s to exist", want)
	}
}

func TestMkdirs_FailsWhenFileExistsAtPrefix(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	w, err := fake.CreateWriter(ctx, objID(t, "b", "x"), gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = fs.Mkdirs(ctx, "gs://b/x/y")
	require.Error(t, err)
	assert.True(t, fserrors.IsInvalidArgument(err))

	names, err := fake.ListObjectNames(ctx, "b", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names, "no placeholders should have been created")
}

func TestMkdirs_FailsWhenBucketMissing(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)

	err := fs.Mkdirs(ctx, "gs://missing/a")
	require.Error(t, err)
	assert.True(t, fserrors.IsNotFound(err))
}

func TestCreate_FailsOverExistingDirectory(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)

	require.NoError(t, fs.Mkdirs(ctx, "gs://b/dir"))

	_, err := fs.Create(ctx, "gs://b/dir", gcs.CreateObjectOptions{})
	require.Error(t, err)
	assert.True(t, fserrors.IsAlreadyExists(err))
}

func TestCreate_MakesParentDirectoriesAndWrites(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	w, err := fs.Create(ctx, "gs://b/a/b/f.txt", gcs.CreateObjectOptions{})
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := fake.GetInfo(ctx, objID(t, "b", "a/b/"))
	require.NoError(t, err)
	assert.True(t, info.Exists)

	fi, err := fs.GetStatus(ctx, "gs://b/a/b/f.txt")
	require.NoError(t, err)
	assert.True(t, fi.Exists)
	assert.False(t, fi.IsDirectory)
}

func TestCreate_MarkerFilesDetectConflictEarly(t *testing.T) {
	ctx := context.Background()
	fake := gcsfake.NewClient()
	fake.CreateBucket("b", "US", "STANDARD")

	config := cfg.Default()
	config.TimestampUpdates.Enabled = false
	config.CreateMarkerFiles = true

	fs, err := gcsfs.New(fake, config, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	w, err := fs.Create(ctx, "gs://b/f.txt", gcs.CreateObjectOptions{})
	require.NoError(t, err)

	// A second create of the same name loses against the marker
	// immediately, before it ever gets a writer.
	_, err = fs.Create(ctx, "gs://b/f.txt", gcs.CreateObjectOptions{})
	require.Error(t, err)
	assert.True(t, fserrors.IsAlreadyExists(err))

	// The winner's writer overwrites its own marker.
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	fi, err := fs.GetStatus(ctx, "gs://b/f.txt")
	require.NoError(t, err)
	assert.True(t, fi.Exists)
	assert.EqualValues(t, 4, fi.Size)
}

func TestListStatus_InfersImplicitDirectory(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	for _, name := range []string{"d/1", "d/2"} {
		w, err := fake.CreateWriter(ctx, objID(t, "b", name), gcs.CreateObjectOptions{})
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	results, err := fs.ListStatus(ctx, "gs://b/d")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	fi, err := fs.GetStatus(ctx, "gs://b/d")
	require.NoError(t, err)
	assert.True(t, fi.Exists)
	assert.True(t, fi.IsDirectory)
}

func TestDelete_NonRecursiveFailsOnNonEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	require.NoError(t, fs.Mkdirs(ctx, "gs://b/dir"))
	w, err := fake.CreateWriter(ctx, objID(t, "b", "dir/f"), gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = fs.Delete(ctx, "gs://b/dir", false)
	require.Error(t, err)
	assert.True(t, fserrors.IsDirectoryNotEmpty(err))

	info, err := fake.GetInfo(ctx, objID(t, "b", "dir/f"))
	require.NoError(t, err)
	assert.True(t, info.Exists, "store must be unchanged on failure")
}

func TestDelete_NonRecursiveSucceedsOnEmptyMaterializedDirectory(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	require.NoError(t, fs.Mkdirs(ctx, "gs://b/dir"))

	// dir/'s own placeholder must not count as one of its children.
	require.NoError(t, fs.Delete(ctx, "gs://b/dir", false))

	info, err := fake.GetInfo(ctx, objID(t, "b", "dir/"))
	require.NoError(t, err)
	assert.False(t, info.Exists)
}

func TestDelete_RecursiveRemovesDirectoryAndChildren(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	require.NoError(t, fs.Mkdirs(ctx, "gs://b/dir"))
	w, err := fake.CreateWriter(ctx, objID(t, "b", "dir/f"), gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, fs.Delete(ctx, "gs://b/dir", true))

	exists, err := fs.Exists(ctx, "gs://b/dir")
	require.NoError(t, err)
	assert.False(t, exists)

	names, err := fake.ListObjectNames(ctx, "b", "", "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDelete_FailsPreconditionOnConcurrentOverwrite(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	id := objID(t, "b", "f.txt")
	w, err := fake.CreateWriter(ctx, id, gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// A concurrent writer overwrites f.txt between this Delete's stat and
	// its delete RPC, bumping the generation out from under it.
	fi, err := fs.GetStatus(ctx, "gs://b/f.txt")
	require.NoError(t, err)
	w, err = fake.CreateWriter(ctx, id, gcs.CreateObjectOptions{OverwriteExisting: true})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = fake.Delete(ctx, []gcs.DeleteRequest{{ResourceID: id, GenerationPrecond: fi.Generation}})
	require.Error(t, err)
	assert.True(t, fserrors.IsFailedPrecondition(err))

	info, err := fake.GetInfo(ctx, id)
	require.NoError(t, err)
	assert.True(t, info.Exists, "concurrent overwrite must survive the stale-generation delete")
}

func TestRename_DirectoryMovesAllDescendants(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	require.NoError(t, fs.Mkdirs(ctx, "gs://b/src/b"))
	for _, name := range []string{"src/a", "src/b/c"} {
		w, err := fake.CreateWriter(ctx, objID(t, "b", name), gcs.CreateObjectOptions{})
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	require.NoError(t, fs.Rename(ctx, "gs://b/src/", "gs://b/dst/"))

	for _, name := range []string{"dst/", "dst/a", "dst/b/", "dst/b/c"} {
		info, err := fake.GetInfo(ctx, objID(t, "b", name))
		require.NoError(t, err)
		assert.True(t, info.Exists, "expected %s to exist", name)
	}

	names, err := fake.ListObjectNames(ctx, "b", "src", "")
	require.NoError(t, err)
	assert.Empty(t, names, "source tree must be fully deleted")
}

func TestRename_FileOntoExistingDirectoryNests(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	require.NoError(t, fs.Mkdirs(ctx, "gs://b/dst"))
	w, err := fake.CreateWriter(ctx, objID(t, "b", "f.txt"), gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, fs.Rename(ctx, "gs://b/f.txt", "gs://b/dst"))

	info, err := fake.GetInfo(ctx, objID(t, "b", "dst/f.txt"))
	require.NoError(t, err)
	assert.True(t, info.Exists)

	exists, err := fs.Exists(ctx, "gs://b/f.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRename_FailsWhenDestinationFileExists(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	for _, name := range []string{"src.txt", "dst.txt"} {
		w, err := fake.CreateWriter(ctx, objID(t, "b", name), gcs.CreateObjectOptions{})
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	err := fs.Rename(ctx, "gs://b/src.txt", "gs://b/dst.txt")
	require.Error(t, err)
	assert.True(t, fserrors.IsAlreadyExists(err))
}

func TestOpen_FailsNotFoundAndDirectory(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	_, err := fs.Open(ctx, "gs://b/missing")
	require.Error(t, err)
	assert.True(t, fserrors.IsNotFound(err))

	require.NoError(t, fs.Mkdirs(ctx, "gs://b/dir"))
	_, err = fs.Open(ctx, "gs://b/dir")
	require.Error(t, err)
	assert.True(t, fserrors.IsInvalidArgument(err))

	w, err := fake.CreateWriter(ctx, objID(t, "b", "f"), gcs.CreateObjectOptions{})
	require.NoError(t, err)
	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := fs.Open(ctx, "gs://b/f")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	_, err = r.Seek(1, io.SeekStart)
	require.NoError(t, err)
	data, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "i", string(data))
	require.NoError(t, r.Close())
}

func TestRepairPossibleImplicitDirectory(t *testing.T) {
	ctx := context.Background()
	fs, fake := newFS(t)

	w, err := fake.CreateWriter(ctx, objID(t, "b", "d/1"), gcs.CreateObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	exists, err := fs.RepairPossibleImplicitDirectory(ctx, "gs://b/d")
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := fake.GetInfo(ctx, objID(t, "b", "d/"))
	require.NoError(t, err)
	assert.True(t, info.Exists, "repair should have materialized the placeholder")
}
