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

// Package gcs implements the object store client: typed operations over
// the flat store, wrapping cloud.google.com/go/storage, plus the error
// taxonomy and retry policy those operations share.
package gcs

import (
	"encoding/binary"
	"time"

	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// MtimeMetadataKey is the custom metadata key a directory's parent mtime
// is stashed under.
const MtimeMetadataKey = "gcs_mtime_millis"

// EncodeMtime renders t as the big-endian 8-byte millis-since-epoch value
// stored under MtimeMetadataKey.
func EncodeMtime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixMilli()))
	return buf
}

// DecodeMtime is EncodeMtime's inverse. ok is false if b isn't 8 bytes.
func DecodeMtime(b []byte) (t time.Time, ok bool) {
	if len(b) != 8 {
		return time.Time{}, false
	}
	millis := int64(binary.BigEndian.Uint64(b))
	return time.UnixMilli(millis), true
}

// ItemInfo is a snapshot of a store entity. Two synthetic forms are built
// with NotFound and InferredDirectory rather than fetched from the store.
type ItemInfo struct {
	ResourceID         path.ResourceID
	Exists             bool
	Size               int64
	CreationTimeMillis int64
	Generation         int64
	ContentType        string
	Metadata           map[string][]byte
	BucketLocation     string
	StorageClass       string

	// Inferred marks an InferredDirectory: a directory status synthesized
	// in memory with no corresponding stored placeholder object.
	Inferred bool
}

// NotFound builds the synthetic "absent" ItemInfo for id. Resource-lookup
// routines return this rather than raising an error.
func NotFound(id path.ResourceID) ItemInfo {
	return ItemInfo{ResourceID: id, Exists: false}
}

// InferredDirectory builds the synthetic directory status for a prefix
// that has children but no placeholder object of its own.
func InferredDirectory(id path.ResourceID) ItemInfo {
	return ItemInfo{
		ResourceID: id.ToDirectoryPath(),
		Exists:     true,
		Size:       0,
		Inferred:   true,
	}
}

// ModificationTime returns the gcs_mtime_millis metadata attribute if
// present and well-formed, else falls back to CreationTimeMillis.
func (i ItemInfo) ModificationTime() time.Time {
	if raw, ok := i.Metadata[MtimeMetadataKey]; ok {
		if t, ok := DecodeMtime(raw); ok {
			return t
		}
	}
	return time.UnixMilli(i.CreationTimeMillis)
}
