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

import "github.com/GoogleCloudPlatform/gcsio-go/path"

// CreateObjectOptions governs createWriter. When OverwriteExisting is
// false the create must carry an if-generation=0 precondition.
type CreateObjectOptions struct {
	OverwriteExisting bool
	ContentType       string
	Metadata          map[string]string
	UseDirectUpload   bool
}

// ReadOptions governs openReader.
type ReadOptions struct {
	// Offset is the absolute byte offset the read begins at.
	Offset int64
}

// ItemUpdate is one element of an updateItems batch: a metadata-attribute
// delta to merge into an existing object, guarded by a generation-match
// precondition taken from the most recently observed info.
type ItemUpdate struct {
	ResourceID        path.ResourceID
	AttributeDelta    map[string]string
	GenerationPrecond int64
}

// DeleteRequest is one element of a delete batch: a generation-match
// precondition taken from the most recently observed info, so a delete
// never clobbers a concurrent overwrite of the same name. A zero
// GenerationPrecond carries no precondition.
type DeleteRequest struct {
	ResourceID        path.ResourceID
	GenerationPrecond int64
}
