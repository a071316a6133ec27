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

package gcsfake_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/gcsio-go/fserrors"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs/gcsfake"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

func writeObject(t *testing.T, c *gcsfake.Client, id path.ResourceID, contents string, overwrite bool) {
	t.Helper()
	w, err := c.CreateWriter(context.Background(), id, gcs.CreateObjectOptions{OverwriteExisting: overwrite, ContentType: "text/plain"})
	require.NoError(t, err)
	_, err = w.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestGetInfoMissingObjectIsNotFoundMarker(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")

	info, err := c.GetInfo(context.Background(), path.NewObject("b", "missing"))
	require.NoError(t, err)
	assert.False(t, info.Exists)
}

func TestCreateWriterThenGetInfoRoundTrips(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	id := path.NewObject("b", "a/b/c.txt")

	writeObject(t, c, id, "hello", true)

	info, err := c.GetInfo(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.EqualValues(t, 5, info.Size)
}

func TestCreateWriterRejectsOverwriteWhenDisallowed(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	id := path.NewObject("b", "a.txt")

	writeObject(t, c, id, "first", true)

	_, err := c.CreateWriter(context.Background(), id, gcs.CreateObjectOptions{OverwriteExisting: false})
	assert.True(t, fserrors.IsFailedPrecondition(err))
}

func TestOpenReaderReadsBackContent(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	id := path.NewObject("b", "a.txt")
	writeObject(t, c, id, "hello world", true)

	r, err := c.OpenReader(context.Background(), id, gcs.ReadOptions{Offset: 6})
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestListObjectInfosWithDelimiterGroupsPrefixes(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	writeObject(t, c, path.NewObject("b", "dir/a.txt"), "a", true)
	writeObject(t, c, path.NewObject("b", "dir/b.txt"), "b", true)
	writeObject(t, c, path.NewObject("b", "top.txt"), "t", true)

	infos, err := c.ListObjectInfos(context.Background(), "b", "", "/")
	require.NoError(t, err)

	var names []string
	for _, info := range infos {
		names = append(names, info.ResourceID.Object())
	}
	assert.Contains(t, names, "dir/")
	assert.Contains(t, names, "top.txt")
	assert.NotContains(t, names, "dir/a.txt")
}

func TestListObjectInfosRecursiveWithoutDelimiter(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	writeObject(t, c, path.NewObject("b", "dir/a.txt"), "a", true)
	writeObject(t, c, path.NewObject("b", "dir/b.txt"), "b", true)

	infos, err := c.ListObjectInfos(context.Background(), "b", "dir/", "")
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestCreateEmptyIsIdempotentForZeroByteObject(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	id := path.NewObject("b", "dir/")

	require.NoError(t, c.CreateEmpty(context.Background(), []path.ResourceID{id}))
	require.NoError(t, c.CreateEmpty(context.Background(), []path.ResourceID{id}))

	info, err := c.GetInfo(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.EqualValues(t, 0, info.Size)
}

func TestCopyDuplicatesObjectUnderNewName(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	src := path.NewObject("b", "src.txt")
	dst := path.NewObject("b", "dst.txt")
	writeObject(t, c, src, "payload", true)

	failed, err := c.Copy(context.Background(), []path.ResourceID{src}, []path.ResourceID{dst})
	require.NoError(t, err)
	assert.Empty(t, failed)

	info, err := c.GetInfo(context.Background(), dst)
	require.NoError(t, err)
	assert.True(t, info.Exists)
}

func TestCopyReportsFailedIndicesForMissingSource(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")

	failed, err := c.Copy(context.Background(),
		[]path.ResourceID{path.NewObject("b", "missing.txt")},
		[]path.ResourceID{path.NewObject("b", "dst.txt")})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, failed)
}

func TestDeleteRemovesObject(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	id := path.NewObject("b", "a.txt")
	writeObject(t, c, id, "x", true)

	require.NoError(t, c.Delete(context.Background(), []gcs.DeleteRequest{{ResourceID: id}}))

	info, err := c.GetInfo(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, info.Exists)
}

func TestWaitForBucketEmptyFailsWhenObjectsRemain(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	writeObject(t, c, path.NewObject("b", "a.txt"), "x", true)

	err := c.WaitForBucketEmpty(context.Background(), "b")
	assert.True(t, fserrors.IsDirectoryNotEmpty(err))
}

func TestUpdateItemsMergesMetadata(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	id := path.NewObject("b", "a.txt")
	writeObject(t, c, id, "x", true)

	err := c.UpdateItems(context.Background(), []gcs.ItemUpdate{{
		ResourceID:     id,
		AttributeDelta: map[string]string{"gcs_mtime_millis": "abc"},
	}})
	require.NoError(t, err)

	info, err := c.GetInfo(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), info.Metadata["gcs_mtime_millis"])
}

func TestComposeConcatenatesSources(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	writeObject(t, c, path.NewObject("b", "a.txt"), "hello-", true)
	writeObject(t, c, path.NewObject("b", "b.txt"), "world", true)

	err := c.Compose(context.Background(), "b", []string{"a.txt", "b.txt"}, "c.txt", "text/plain")
	require.NoError(t, err)

	r, err := c.OpenReader(context.Background(), path.NewObject("b", "c.txt"), gcs.ReadOptions{})
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", string(data))
}

func TestDeleteBucketsRejectsNonEmptyBucket(t *testing.T) {
	c := gcsfake.NewClient()
	c.CreateBucket("b", "US", "STANDARD")
	writeObject(t, c, path.NewObject("b", "a.txt"), "x", true)

	err := c.DeleteBuckets(context.Background(), []string{"b"})
	assert.True(t, fserrors.IsDirectoryNotEmpty(err))
}
