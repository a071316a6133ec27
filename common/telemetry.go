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
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

type ShutdownFn func(ctx context.Context) error

// The default time buckets for latency metrics.
// The unit can however change for different units i.e. for one metric the unit could be microseconds and for another it could be milliseconds.
var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)

// JoinShutdownFunc combines the provided shutdown functions into a single function.
func JoinShutdownFunc(shutdownFns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// MetricAttr represents the attributes associated with a metric.
type MetricAttr struct {
	Key, Value string
}

func (a *MetricAttr) String() string {
	return fmt.Sprintf("Key: %s, Value: %s", a.Key, a.Value)
}

// GCSMetricHandle covers the raw object-store client (component B).
type GCSMetricHandle interface {
	GCSRequestCount(ctx context.Context, inc int64, attrs []MetricAttr)
	GCSRequestLatency(ctx context.Context, latency time.Duration, attrs []MetricAttr)
	GCSRetryCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

// CacheMetricHandle covers the directory list cache and the
// cache-supplemented client (components C and D).
type CacheMetricHandle interface {
	CacheLookupCount(ctx context.Context, inc int64, attrs []MetricAttr)
	CacheHitCount(ctx context.Context, inc int64, attrs []MetricAttr)
	CacheEvictionCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

// FacadeMetricHandle covers the file-system facade (component F).
type FacadeMetricHandle interface {
	FacadeOpsCount(ctx context.Context, inc int64, attrs []MetricAttr)
	FacadeOpsLatency(ctx context.Context, latency time.Duration, attrs []MetricAttr)
	FacadeOpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

// TimestampMetricHandle covers the best-effort timestamp updater (component G).
type TimestampMetricHandle interface {
	TimestampUpdateCount(ctx context.Context, inc int64, attrs []MetricAttr)
	TimestampUpdateDroppedCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

type MetricHandle interface {
	GCSMetricHandle
	CacheMetricHandle
	FacadeMetricHandle
	TimestampMetricHandle
}

// Attribute keys shared across metric call sites.
const (
	AttrOp        = "op"
	AttrMethod    = "method"
	AttrErrorType = "error_type"
)

// CaptureFacadeOp records the standard count/latency/error triple around
// a facade operation.
func CaptureFacadeOp(ctx context.Context, handle MetricHandle, op string, start time.Time, err error) {
	attrs := []MetricAttr{{Key: AttrOp, Value: op}}
	handle.FacadeOpsCount(ctx, 1, attrs)
	handle.FacadeOpsLatency(ctx, time.Since(start), attrs)
	if err != nil {
		handle.FacadeOpsErrorCount(ctx, 1, attrs)
	}
}
