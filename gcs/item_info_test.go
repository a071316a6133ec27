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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

func TestMtimeRoundTrip(t *testing.T) {
	want := time.UnixMilli(1_700_000_123_456)
	encoded := EncodeMtime(want)
	got, ok := DecodeMtime(encoded)
	require.True(t, ok)
	assert.True(t, want.Equal(got))
}

func TestDecodeMtimeRejectsWrongLength(t *testing.T) {
	_, ok := DecodeMtime([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestNotFoundMarker(t *testing.T) {
	id := path.NewObject("b", "a.txt")
	info := NotFound(id)
	assert.False(t, info.Exists)
	assert.Equal(t, id, info.ResourceID)
}

func TestInferredDirectoryHasDirectoryPathAndZeroSize(t *testing.T) {
	id := path.NewObject("b", "dir")
	info := InferredDirectory(id)
	assert.True(t, info.Exists)
	assert.True(t, info.Inferred)
	assert.Zero(t, info.Size)
	assert.True(t, info.ResourceID.IsDirectoryPath())
}

func TestModificationTimePrefersMtimeMetadata(t *testing.T) {
	mtime := time.UnixMilli(1_700_000_000_000)
	info := ItemInfo{
		CreationTimeMillis: 1_000,
		Metadata:           map[string][]byte{MtimeMetadataKey: EncodeMtime(mtime)},
	}
	assert.True(t, mtime.Equal(info.ModificationTime()))
}

func TestModificationTimeFallsBackToCreationTime(t *testing.T) {
	info := ItemInfo{CreationTimeMillis: 1_700_000_000_000}
	assert.Equal(t, int64(1_700_000_000_000), info.ModificationTime().UnixMilli())
}
