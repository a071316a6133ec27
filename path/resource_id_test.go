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

package path

import (
	"testing"

	"github.com/GoogleCloudPlatform/gcsio-go/fserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoot(t *testing.T) {
	for _, uri := range []string{"gs:/", "gs://"} {
		id, err := Parse(uri, true)
		require.NoError(t, err)
		assert.True(t, id.IsRoot())
	}
}

func TestParseBucket(t *testing.T) {
	id, err := Parse("gs://my-bucket", true)
	require.NoError(t, err)
	assert.True(t, id.IsBucket())
	assert.Equal(t, "my-bucket", id.Bucket())
}

func TestParseObject(t *testing.T) {
	id, err := Parse("gs://my-bucket/a/b/c.txt", false)
	require.NoError(t, err)
	assert.True(t, id.IsObject())
	assert.Equal(t, "my-bucket", id.Bucket())
	assert.Equal(t, "a/b/c.txt", id.Object())
}

func TestParseRejectsBadScheme(t *testing.T) {
	_, err := Parse("s3://bucket/obj", true)
	assert.True(t, fserrors.IsInvalidArgument(err))
}

func TestParseRejectsConsecutiveSlashes(t *testing.T) {
	_, err := Parse("gs://bucket/a//b", true)
	assert.True(t, fserrors.IsInvalidArgument(err))
}

func TestParseRejectsEmptyObjectWhenDisallowed(t *testing.T) {
	_, err := Parse("gs://bucket/", false)
	assert.True(t, fserrors.IsInvalidArgument(err))
}

func TestParseAllowsEmptyObjectAsBucket(t *testing.T) {
	id, err := Parse("gs://bucket/", true)
	require.NoError(t, err)
	assert.True(t, id.IsBucket())
}

func TestNewObjectStripsLeadingSlash(t *testing.T) {
	id := NewObject("b", "/a/b")
	assert.Equal(t, "a/b", id.Object())
}

func TestRoundTrip(t *testing.T) {
	uris := []string{"gs:/", "gs://bucket", "gs://bucket/a/b/c", "gs://bucket/a/b/"}
	for _, uri := range uris {
		t.Run(uri, func(t *testing.T) {
			id, err := Parse(uri, true)
			require.NoError(t, err)
			reparsed, err := Parse(id.String(), true)
			require.NoError(t, err)
			assert.True(t, id.Equal(reparsed))
		})
	}
}
