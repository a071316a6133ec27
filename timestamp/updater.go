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

// Package timestamp implements the timestamp updater:
// a bounded background worker pool that best-effort updates a parent
// directory's gcs_mtime_millis metadata whenever the facade creates,
// deletes, or renames one of its children. Built on
// internal/workerpool.StaticWorkerPool wired to a domain-specific task
// shape.
package timestamp

import (
	"context"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/gcsio-go/clock"
	"github.com/GoogleCloudPlatform/gcsio-go/common"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/internal/logger"
	"github.com/GoogleCloudPlatform/gcsio-go/internal/workerpool"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// Task bundles a mutation's modified paths and the parents to exclude from
// the mtime update it triggers; the facade excludes parents it created
// itself within the same operation.
type Task struct {
	ModifiedPaths   []path.ResourceID
	ExcludedParents []path.ResourceID
}

// Filter is the configurable substring includes/excludes predicate. A
// path passes if it matches at least one Includes substring (or Includes
// is empty) and matches no Excludes substring.
type Filter struct {
	Includes []string
	Excludes []string
}

func (f Filter) allows(uri string) bool {
	if len(f.Includes) > 0 {
		matched := false
		for _, s := range f.Includes {
			if strings.Contains(uri, s) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, s := range f.Excludes {
		if strings.Contains(uri, s) {
			return false
		}
	}
	return true
}

// Updater runs Task submissions across a dedicated bounded worker pool and
// is drained on Close.
type Updater struct {
	pool    *workerpool.StaticWorkerPool
	client  gcs.Client
	clk     clock.Clock
	filter  Filter
	metrics common.MetricHandle
}

// Config mirrors cfg.TimestampUpdatesConfig.
type Config struct {
	Workers  int
	Includes []string
	Excludes []string
}

// New starts a worker pool of cfg.Workers goroutines (default 2) backing
// the updater. A nil clk defaults to clock.RealClock{}; a nil metrics
// handle defaults to a no-op.
func New(client gcs.Client, cfg Config, clk clock.Clock, metrics common.MetricHandle) (*Updater, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if metrics == nil {
		metrics = common.NewNoopMetrics()
	}

	pool, err := workerpool.NewStaticWorkerPool(0, uint32(workers))
	if err != nil {
		return nil, err
	}

	return &Updater{
		pool:    pool,
		client:  client,
		clk:     clk,
		filter:  Filter{Includes: cfg.Includes, Excludes: cfg.Excludes},
		metrics: metrics,
	}, nil
}

// Enqueue schedules t on the worker pool. Queue saturation is logged and
// the task dropped; Enqueue itself never blocks or returns an error to
// the caller.
func (u *Updater) Enqueue(t Task) {
	ok := u.pool.Schedule(func() { u.run(t) })
	if !ok {
		logger.Debugf("timestamp: queue saturated, dropping update for %d paths", len(t.ModifiedPaths))
		u.metrics.TimestampUpdateDroppedCount(context.Background(), 1, nil)
	}
}

func (u *Updater) run(t Task) {
	ctx := context.Background()

	excluded := make(map[string]bool, len(t.ExcludedParents))
	for _, p := range t.ExcludedParents {
		excluded[p.String()] = true
	}

	parents := make(map[string]path.ResourceID)
	for _, modified := range t.ModifiedPaths {
		parent := modified.Parent()
		if parent.IsRoot() || parent.IsBucket() {
			continue
		}
		if excluded[parent.String()] {
			continue
		}
		if !u.filter.allows(parent.String()) {
			continue
		}
		parents[parent.String()] = parent
	}
	if len(parents) == 0 {
		return
	}

	now := gcs.EncodeMtime(u.clk.Now())
	updates := make([]gcs.ItemUpdate, 0, len(parents))
	for _, p := range parents {
		updates = append(updates, gcs.ItemUpdate{
			ResourceID:     p,
			AttributeDelta: map[string]string{gcs.MtimeMetadataKey: string(now)},
		})
	}

	if err := u.client.UpdateItems(ctx, updates); err != nil {
		logger.Debugf("timestamp: updateItems failed for %d parents: %v", len(updates), err)
		return
	}
	u.metrics.TimestampUpdateCount(ctx, int64(len(updates)), nil)
}

// Close drains in-flight and queued tasks, waiting up to timeout before
// returning regardless. A task still running at the deadline keeps its
// goroutine; the underlying pool has no hard-kill primitive, so the
// caller simply stops waiting for it.
func (u *Updater) Close(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		u.pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-u.clk.After(timeout):
		logger.Debugf("timestamp: shutdown drain exceeded %s, returning without waiting further", timeout)
	}
}
