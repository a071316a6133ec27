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
	"sort"
	"strings"
)

// IsDirectoryPath reports whether r names a directory path: Root and
// Bucket always are; an Object is iff its name ends in the delimiter.
func (r ResourceID) IsDirectoryPath() bool {
	switch r.kind {
	case KindRoot, KindBucket:
		return true
	default:
		return strings.HasSuffix(r.object, delimiter)
	}
}

// ToDirectoryPath appends the delimiter if absent. Root and Bucket are
// already directory paths and are returned unchanged (identity).
func (r ResourceID) ToDirectoryPath() ResourceID {
	if r.kind != KindObject || strings.HasSuffix(r.object, delimiter) {
		return r
	}
	return ResourceID{kind: KindObject, bucket: r.bucket, object: r.object + delimiter}
}

// ToFilePath strips a single trailing delimiter. Root and Bucket are
// returned unchanged.
func (r ResourceID) ToFilePath() ResourceID {
	if r.kind != KindObject || !strings.HasSuffix(r.object, delimiter) {
		return r
	}
	return ResourceID{kind: KindObject, bucket: r.bucket, object: strings.TrimSuffix(r.object, delimiter)}
}

// Parent returns the longest proper directory-prefix of r. Root's parent
// is itself, matching the POSIX "/.." convention.
func (r ResourceID) Parent() ResourceID {
	switch r.kind {
	case KindRoot:
		return r
	case KindBucket:
		return Root()
	default:
		name := strings.TrimSuffix(r.object, delimiter)
		idx := strings.LastIndexByte(name, '/')
		if idx < 0 {
			return NewBucket(r.bucket)
		}
		return ResourceID{kind: KindObject, bucket: r.bucket, object: name[:idx+1]}
	}
}

// LeafName returns the last non-empty path segment, accounting for a
// trailing delimiter on directory paths.
func (r ResourceID) LeafName() string {
	switch r.kind {
	case KindRoot:
		return ""
	case KindBucket:
		return r.bucket
	default:
		name := strings.TrimSuffix(r.object, delimiter)
		idx := strings.LastIndexByte(name, '/')
		if idx < 0 {
			return name
		}
		return name[idx+1:]
	}
}

// Less orders two resources by string length first, then lexicographically.
// This is the only ordering multi-object operations require: ascending
// guarantees ancestor-before-descendant, descending guarantees the reverse.
func Less(a, b ResourceID) bool {
	sa, sb := a.String(), b.String()
	if len(sa) != len(sb) {
		return len(sa) < len(sb)
	}
	return sa < sb
}

// SortAscending orders ids parents-first (shortest, then lexicographic).
func SortAscending(ids []ResourceID) {
	sort.Slice(ids, func(i, j int) bool { return Less(ids[i], ids[j]) })
}

// SortDescending orders ids children-first (longest, then reverse lexicographic).
func SortDescending(ids []ResourceID) {
	sort.Slice(ids, func(i, j int) bool { return Less(ids[j], ids[i]) })
}

// StrictPrefixes enumerates every proper directory-path ancestor of r, in
// root-to-leaf order (not including r itself). For
// gs://b/a/b/c it returns {gs://b, gs://b/a/, gs://b/a/b/}.
func StrictPrefixes(r ResourceID) []ResourceID {
	if r.kind != KindObject {
		return nil
	}

	name := strings.TrimSuffix(r.object, delimiter)
	segments := strings.Split(name, delimiter)
	if len(segments) <= 1 {
		return []ResourceID{NewBucket(r.bucket)}
	}

	prefixes := make([]ResourceID, 0, len(segments))
	prefixes = append(prefixes, NewBucket(r.bucket))
	built := ""
	for i := 0; i < len(segments)-1; i++ {
		built += segments[i] + delimiter
		prefixes = append(prefixes, ResourceID{kind: KindObject, bucket: r.bucket, object: built})
	}
	return prefixes
}
