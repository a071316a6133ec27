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
	"time"

	"github.com/GoogleCloudPlatform/gcsio-go/common"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/internal/logger"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// repairOrInfer decides whether dirForm exists as an implicit directory,
// materializing a placeholder when possible. It returns the ItemInfo to
// use for dirForm and whether it exists at all. Failure to materialize a
// placeholder is logged, not thrown: the directory is reported as
// existing (via a synthetic InferredDirectory) regardless, since a
// listing already proved it has children.
func (fs *FileSystem) repairOrInfer(ctx context.Context, dirForm path.ResourceID) (gcs.ItemInfo, bool) {
	inferred, ok := fs.inferDirectory(ctx, dirForm)
	if !ok {
		return gcs.ItemInfo{}, false
	}

	if err := fs.client.CreateEmpty(ctx, []path.ResourceID{dirForm}); err != nil {
		logger.Debugf("gcsfs: failed to materialize implicit directory %s: %v", dirForm, err)
		return inferred, true
	}

	info, err := fs.client.GetInfo(ctx, dirForm)
	if err != nil || !info.Exists {
		logger.Debugf("gcsfs: materialized %s but refetch failed: %v", dirForm, err)
		return inferred, true
	}
	return info, true
}

// RepairPossibleImplicitDirectory materializes uri as a placeholder object
// if it currently exists only implicitly, as a prefix of other objects.
// It returns whether the repair produced an existing entity.
func (fs *FileSystem) RepairPossibleImplicitDirectory(ctx context.Context, uri string) (exists bool, err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpRepairImplicit, start, err) }()

	var id path.ResourceID
	id, err = path.Parse(uri, true)
	if err != nil {
		return false, err
	}

	dirForm := id.ToDirectoryPath()
	_, exists = fs.repairOrInfer(ctx, dirForm)
	return exists, nil
}
