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

package gcsfs

import (
	"context"

	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/internal/logger"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// inferDirectory reports whether dirForm exists implicitly, synthesizing
// its directory status in memory. It never writes to the store, which
// keeps status lookups read-only; materializing a placeholder is the
// repair path's job.
func (fs *FileSystem) inferDirectory(ctx context.Context, dirForm path.ResourceID) (gcs.ItemInfo, bool) {
	if !fs.hasAnyChild(ctx, dirForm) {
		return gcs.ItemInfo{}, false
	}
	return gcs.InferredDirectory(dirForm), true
}

// hasAnyChild reports whether a depth-1 listing under dirForm returns at
// least one result. Listing errors here are tolerated, not propagated:
// listing is an optimization for detecting an implicit directory, and the
// caller's getInfo-based fallback decides the real outcome.
func (fs *FileSystem) hasAnyChild(ctx context.Context, dirForm path.ResourceID) bool {
	prefix := ""
	if dirForm.IsObject() {
		prefix = dirForm.Object()
	}
	names, err := fs.client.ListObjectNames(ctx, dirForm.Bucket(), prefix, "/")
	if err != nil {
		logger.Debugf("gcsfs: tolerating listing error while probing implicit directory %s: %v", dirForm, err)
		return false
	}
	return len(names) > 0
}
