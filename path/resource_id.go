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

// Package path implements the Resource Identifier and Path Semantics
// components: parsing gs://bucket/object URIs into a tagged ResourceID,
// and the directory/file path conversions the facade relies on to
// translate between the two.
package path

import (
	"strings"

	"github.com/GoogleCloudPlatform/gcsio-go/fserrors"
)

// Kind tags which of the three ResourceID variants a value holds.
type Kind uint8

const (
	KindRoot Kind = iota
	KindBucket
	KindObject
)

const scheme = "gs:"
const delimiter = "/"

// ResourceID is the sum type {Root, Bucket(name), Object(bucket, name)}.
// The zero value is Root.
type ResourceID struct {
	kind   Kind
	bucket string
	object string
}

// Root returns the singleton root resource (the bare "gs:/").
func Root() ResourceID { return ResourceID{kind: KindRoot} }

// NewBucket builds a Bucket-kind ResourceID. name must not be empty or
// contain '/'; callers that can't guarantee this should go through Parse.
func NewBucket(name string) ResourceID {
	return ResourceID{kind: KindBucket, bucket: name}
}

// NewObject builds an Object-kind ResourceID. A leading '/' on object is
// stripped.
func NewObject(bucket, object string) ResourceID {
	return ResourceID{kind: KindObject, bucket: bucket, object: strings.TrimPrefix(object, delimiter)}
}

func (r ResourceID) Kind() Kind    { return r.kind }
func (r ResourceID) IsRoot() bool  { return r.kind == KindRoot }
func (r ResourceID) IsBucket() bool { return r.kind == KindBucket }
func (r ResourceID) IsObject() bool { return r.kind == KindObject }

// Bucket returns the bucket name; empty for Root.
func (r ResourceID) Bucket() string { return r.bucket }

// Object returns the object name; empty for Root and Bucket.
func (r ResourceID) Object() string { return r.object }

// String renders the canonical gs:// URI for this resource.
func (r ResourceID) String() string {
	switch r.kind {
	case KindRoot:
		return "gs:/"
	case KindBucket:
		return "gs://" + r.bucket
	default:
		return "gs://" + r.bucket + "/" + r.object
	}
}

func (r ResourceID) Equal(other ResourceID) bool {
	return r.kind == other.kind && r.bucket == other.bucket && r.object == other.object
}

// Parse validates and decodes a gs:// URI into a ResourceID. It fails with
// an InvalidArgument fserrors.Error when the scheme isn't "gs", the bucket
// is empty, the object contains "//", or the object is empty and
// allowEmptyObject is false.
func Parse(uri string, allowEmptyObject bool) (ResourceID, error) {
	if !strings.HasPrefix(uri, scheme) {
		return ResourceID{}, fserrors.NewInvalidArgument("unsupported scheme in %q, want gs://", uri)
	}
	rest := uri[len(scheme):]

	if rest == "" || rest == delimiter {
		return Root(), nil
	}
	if !strings.HasPrefix(rest, "//") {
		return ResourceID{}, fserrors.NewInvalidArgument("malformed gs URI %q", uri)
	}
	rest = rest[2:]
	if rest == "" {
		return Root(), nil
	}

	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		if rest == "" {
			return ResourceID{}, fserrors.NewInvalidArgument("empty bucket in %q", uri)
		}
		if !allowEmptyObject {
			return ResourceID{}, fserrors.NewInvalidArgument("empty object not allowed in %q", uri)
		}
		return NewBucket(rest), nil
	}

	bucket := rest[:idx]
	if bucket == "" {
		return ResourceID{}, fserrors.NewInvalidArgument("empty bucket in %q", uri)
	}

	object := rest[idx+1:]
	if strings.Contains(object, "//") {
		return ResourceID{}, fserrors.NewInvalidArgument("consecutive '/' in object name %q", uri)
	}
	if object == "" {
		if !allowEmptyObject {
			return ResourceID{}, fserrors.NewInvalidArgument("empty object not allowed in %q", uri)
		}
		return NewBucket(bucket), nil
	}

	return NewObject(bucket, object), nil
}

// MustParse is Parse, panicking on error. It exists for literal test
// fixtures and startup-time config paths, never for request handling.
func MustParse(uri string, allowEmptyObject bool) ResourceID {
	id, err := Parse(uri, allowEmptyObject)
	if err != nil {
		panic(err)
	}
	return id
}
