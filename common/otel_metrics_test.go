// Copyright 2024 Google LLC
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

package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOTelMetricsRecordsWithoutPanicking(t *testing.T) {
	handle, err := NewOTelMetrics()
	require.NoError(t, err)
	require.NotNil(t, handle)

	ctx := context.Background()
	attrs := []MetricAttr{{Key: AttrOp, Value: OpCreate}}

	assert.NotPanics(t, func() {
		handle.GCSRequestCount(ctx, 1, attrs)
		handle.GCSRequestLatency(ctx, time.Millisecond, attrs)
		handle.GCSRetryCount(ctx, 1, attrs)
		handle.CacheLookupCount(ctx, 1, attrs)
		handle.CacheHitCount(ctx, 1, attrs)
		handle.CacheEvictionCount(ctx, 1, attrs)
		handle.FacadeOpsCount(ctx, 1, attrs)
		handle.FacadeOpsLatency(ctx, time.Microsecond, attrs)
		handle.FacadeOpsErrorCount(ctx, 1, attrs)
		handle.TimestampUpdateCount(ctx, 1, attrs)
		handle.TimestampUpdateDroppedCount(ctx, 1, attrs)
	})
}

func TestAttrOptionIsCached(t *testing.T) {
	attrs := []MetricAttr{{Key: AttrOp, Value: OpCreate}}

	opt1 := attrOption(attrs)
	opt2 := attrOption(attrs)

	assert.NotNil(t, opt1)
	assert.NotNil(t, opt2)
}

func TestAttrOptionEmpty(t *testing.T) {
	assert.NotNil(t, attrOption(nil))
}
