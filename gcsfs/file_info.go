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

// Package gcsfs implements the File-System Facade (component F) and the
// implicit-directory inference/repair logic (component H): the public
// create/open/delete/mkdirs/rename/listStatus/getStatus/exists surface
// layered over path, gcs, cache/caching, and timestamp.
package gcsfs

import (
	"time"

	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// FileInfo is the path-level view layered over an ItemInfo.
type FileInfo struct {
	Path             string
	IsDirectory      bool
	Exists           bool
	ModificationTime time.Time
	Size             int64

	// Generation is the store's most recently observed generation for
	// this resource, carried forward as a delete/copy precondition so a
	// later mutation can't clobber a concurrent overwrite of the same
	// name.
	Generation int64

	// Permissions is advisory only; POSIX permission enforcement is a
	// non-goal, this is reported as-is from configuration.
	Permissions uint32
}

func (fs *FileSystem) toFileInfo(id path.ResourceID, info gcs.ItemInfo) FileInfo {
	return FileInfo{
		Path:             id.String(),
		IsDirectory:      id.IsDirectoryPath(),
		Exists:           info.Exists,
		ModificationTime: info.ModificationTime(),
		Size:             info.Size,
		Generation:       info.Generation,
		Permissions:      fs.cfg.ReportedPermissions,
	}
}
