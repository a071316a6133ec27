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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	gcsMeter       = otel.Meter("gcsio/gcs")
	cacheMeter     = otel.Meter("gcsio/cache")
	facadeMeter    = otel.Meter("gcsio/facade")
	timestampMeter = otel.Meter("gcsio/timestamp")

	attributeSets sync.Map
)

func attrOption(attrs []MetricAttr) metric.MeasurementOption {
	if len(attrs) == 0 {
		return metric.WithAttributeSet(attribute.NewSet())
	}

	key := formatAttrs(attrs)
	if v, ok := attributeSets.Load(key); ok {
		return v.(metric.MeasurementOption)
	}

	kvs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		kvs[i] = attribute.String(a.Key, a.Value)
	}
	opt := metric.WithAttributeSet(attribute.NewSet(kvs...))
	v, _ := attributeSets.LoadOrStore(key, opt)
	return v.(metric.MeasurementOption)
}

func formatAttrs(attrs []MetricAttr) string {
	s := ""
	for _, a := range attrs {
		s += a.Key + "=" + a.Value + ";"
	}
	return s
}

// otelMetrics maintains the counters and histograms computed for every
// component (B, C, D, F, G) via the otel metric SDK.
type otelMetrics struct {
	gcsRequestCount   metric.Int64Counter
	gcsRequestLatency metric.Float64Histogram
	gcsRetryCount     metric.Int64Counter

	cacheLookupCount   metric.Int64Counter
	cacheHitCount      metric.Int64Counter
	cacheEvictionCount metric.Int64Counter

	facadeOpsCount      metric.Int64Counter
	facadeOpsLatency    metric.Float64Histogram
	facadeOpsErrorCount metric.Int64Counter

	timestampUpdateCount        metric.Int64Counter
	timestampUpdateDroppedCount metric.Int64Counter
}

func (o *otelMetrics) GCSRequestCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.gcsRequestCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) GCSRequestLatency(ctx context.Context, latency time.Duration, attrs []MetricAttr) {
	o.gcsRequestLatency.Record(ctx, float64(latency.Milliseconds()), attrOption(attrs))
}

func (o *otelMetrics) GCSRetryCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.gcsRetryCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) CacheLookupCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.cacheLookupCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) CacheHitCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.cacheHitCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) CacheEvictionCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.cacheEvictionCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) FacadeOpsCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.facadeOpsCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) FacadeOpsLatency(ctx context.Context, latency time.Duration, attrs []MetricAttr) {
	o.facadeOpsLatency.Record(ctx, float64(latency.Microseconds()), attrOption(attrs))
}

func (o *otelMetrics) FacadeOpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.facadeOpsErrorCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) TimestampUpdateCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.timestampUpdateCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) TimestampUpdateDroppedCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.timestampUpdateDroppedCount.Add(ctx, inc, attrOption(attrs))
}

// NewOTelMetrics builds the real metric.Meter-backed MetricHandle used
// outside of tests.
func NewOTelMetrics() (MetricHandle, error) {
	gcsRequestCount, err1 := gcsMeter.Int64Counter("gcs/request_count", metric.WithDescription("The cumulative number of GCS requests issued by the object store client."))
	gcsRequestLatency, err2 := gcsMeter.Float64Histogram("gcs/request_latencies", metric.WithDescription("The cumulative distribution of GCS request latencies."), metric.WithUnit("ms"), defaultLatencyDistribution)
	gcsRetryCount, err3 := gcsMeter.Int64Counter("gcs/retry_count", metric.WithDescription("The cumulative number of transient-error retries issued against GCS."))

	cacheLookupCount, err4 := cacheMeter.Int64Counter("cache/lookup_count", metric.WithDescription("The cumulative number of directory list cache lookups."))
	cacheHitCount, err5 := cacheMeter.Int64Counter("cache/hit_count", metric.WithDescription("The cumulative number of directory list cache hits."))
	cacheEvictionCount, err6 := cacheMeter.Int64Counter("cache/eviction_count", metric.WithDescription("The cumulative number of directory list cache entries evicted for staleness."))

	facadeOpsCount, err7 := facadeMeter.Int64Counter("facade/ops_count", metric.WithDescription("The cumulative number of facade operations processed."))
	facadeOpsLatency, err8 := facadeMeter.Float64Histogram("facade/ops_latency", metric.WithDescription("The cumulative distribution of facade operation latencies."), metric.WithUnit("us"), defaultLatencyDistribution)
	facadeOpsErrorCount, err9 := facadeMeter.Int64Counter("facade/ops_error_count", metric.WithDescription("The cumulative number of facade operations that returned an error."))

	timestampUpdateCount, err10 := timestampMeter.Int64Counter("timestamp/update_count", metric.WithDescription("The cumulative number of parent-directory timestamp updates applied."))
	timestampUpdateDroppedCount, err11 := timestampMeter.Int64Counter("timestamp/update_dropped_count", metric.WithDescription("The cumulative number of timestamp updates dropped due to queue saturation."))

	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7, err8, err9, err10, err11); err != nil {
		return nil, err
	}

	return &otelMetrics{
		gcsRequestCount:             gcsRequestCount,
		gcsRequestLatency:           gcsRequestLatency,
		gcsRetryCount:               gcsRetryCount,
		cacheLookupCount:            cacheLookupCount,
		cacheHitCount:               cacheHitCount,
		cacheEvictionCount:          cacheEvictionCount,
		facadeOpsCount:              facadeOpsCount,
		facadeOpsLatency:            facadeOpsLatency,
		facadeOpsErrorCount:         facadeOpsErrorCount,
		timestampUpdateCount:        timestampUpdateCount,
		timestampUpdateDroppedCount: timestampUpdateDroppedCount,
	}, nil
}
