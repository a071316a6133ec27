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

package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/gcsio-go/cache"
	"github.com/GoogleCloudPlatform/gcsio-go/clock"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

func TestCachedBucket_RejectsForeignAndNonObjectIDs(t *testing.T) {
	b := cache.NewCachedBucket("fruits")

	require.Error(t, b.Put(&cache.CacheEntry{ResourceID: path.Root()}))
	require.Error(t, b.Put(&cache.CacheEntry{ResourceID: path.NewBucket("fruits")}))
	require.Error(t, b.Put(&cache.CacheEntry{ResourceID: path.NewObject("spices", "cumin")}))

	ok := b.Put(&cache.CacheEntry{ResourceID: path.NewObject("fruits", "apple")})
	require.NoError(t, ok)
}

func TestCachedBucket_PutGetRemove(t *testing.T) {
	b := cache.NewCachedBucket("fruits")
	apple := path.NewObject("fruits", "apple")

	entry, err := b.Get(apple)
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, b.Put(&cache.CacheEntry{ResourceID: apple, CreationTimeMs: 100}))
	entry, err = b.Get(apple)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(100), entry.CreationTimeMs)

	require.NoError(t, b.Remove(apple))
	entry, err = b.Get(apple)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCachedBucket_ListPreservesInsertionOrder(t *testing.T) {
	b := cache.NewCachedBucket("fruits")
	require.NoError(t, b.Put(&cache.CacheEntry{ResourceID: path.NewObject("fruits", "banana")}))
	require.NoError(t, b.Put(&cache.CacheEntry{ResourceID: path.NewObject("fruits", "apple")}))
	require.NoError(t, b.Put(&cache.CacheEntry{ResourceID: path.NewObject("fruits", "cherry")}))

	list := b.List()
	require.Len(t, list, 3)
	assert.Equal(t, "banana", list[0].ResourceID.Object())
	assert.Equal(t, "apple", list[1].ResourceID.Object())
	assert.Equal(t, "cherry", list[2].ResourceID.Object())
}

func TestCachedBucket_PutExistingMovesToBack(t *testing.T) {
	b := cache.NewCachedBucket("fruits")
	apple := path.NewObject("fruits", "apple")
	banana := path.NewObject("fruits", "banana")
	require.NoError(t, b.Put(&cache.CacheEntry{ResourceID: apple, CreationTimeMs: 1}))
	require.NoError(t, b.Put(&cache.CacheEntry{ResourceID: banana, CreationTimeMs: 2}))
	require.NoError(t, b.Put(&cache.CacheEntry{ResourceID: apple, CreationTimeMs: 3}))

	list := b.List()
	require.Len(t, list, 2)
	assert.Equal(t, "banana", list[0].ResourceID.Object())
	assert.Equal(t, "apple", list[1].ResourceID.Object())
	assert.Equal(t, int64(3), list[1].CreationTimeMs)
}

func TestProcessLocal_PutGetRemoveResource(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	c := cache.NewProcessLocal(cache.Config{MaxEntryAge: time.Hour}, clk)

	obj := path.NewObject("fruits", "apple")
	require.NoError(t, c.PutResource(obj))

	entry, err := c.GetEntry(obj)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Nil(t, entry.ItemInfo)

	require.NoError(t, c.RemoveResource(obj))
	entry, err = c.GetEntry(obj)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestProcessLocal_PutResourceInfo(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	c := cache.NewProcessLocal(cache.DefaultConfig(), clk)

	obj := path.NewObject("fruits", "apple")
	require.NoError(t, c.PutResourceInfo(obj, gcs.ItemInfo{ResourceID: obj, Exists: true, Size: 42}))

	entry, err := c.GetEntry(obj)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NotNil(t, entry.ItemInfo)
	assert.Equal(t, int64(42), entry.ItemInfo.Size)
}

func TestProcessLocal_EntryExpiresAfterMaxEntryAge(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	c := cache.NewProcessLocal(cache.Config{MaxEntryAge: time.Minute}, clk)

	obj := path.NewObject("fruits", "apple")
	require.NoError(t, c.PutResource(obj))

	clk.AdvanceTime(30 * time.Second)
	entry, err := c.GetEntry(obj)
	require.NoError(t, err)
	assert.NotNil(t, entry)

	clk.AdvanceTime(2 * time.Minute)
	entry, err = c.GetEntry(obj)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestProcessLocal_BucketEntryAndList(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	c := cache.NewProcessLocal(cache.DefaultConfig(), clk)

	require.NoError(t, c.PutResource(path.NewBucket("fruits")))
	require.NoError(t, c.PutResource(path.NewBucket("spices")))

	list, err := c.GetBucketList()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProcessLocal_ObjectListScopedPerBucket(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	c := cache.NewProcessLocal(cache.DefaultConfig(), clk)

	require.NoError(t, c.PutResource(path.NewObject("fruits", "apple")))
	require.NoError(t, c.PutResource(path.NewObject("spices", "cumin")))

	fruitsList, err := c.GetObjectList("fruits")
	require.NoError(t, err)
	require.Len(t, fruitsList, 1)
	assert.Equal(t, "apple", fruitsList[0].ResourceID.Object())
}

func TestProcessLocal_SweepRemovesExpiredBucketAndChildren(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	c := cache.NewProcessLocal(cache.Config{MaxEntryAge: time.Minute}, clk)

	require.NoError(t, c.PutResource(path.NewBucket("fruits")))
	require.NoError(t, c.PutResource(path.NewObject("fruits", "apple")))

	clk.AdvanceTime(2 * time.Minute)
	c.Sweep()

	list, err := c.GetObjectList("fruits")
	require.NoError(t, err)
	assert.Empty(t, list)

	buckets, err := c.GetBucketList()
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestProcessLocal_RejectsCachingRoot(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	c := cache.NewProcessLocal(cache.DefaultConfig(), clk)
	assert.Error(t, c.PutResource(path.Root()))
}
