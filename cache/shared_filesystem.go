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

package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
)

// bucketMarker and objectMarker are the sentinel file names touched inside
// a mirrored directory to record "this directory (bucket, or object
// directory-path) itself is a known entry", distinct from the directory
// existing merely because a deeper descendant needed it to exist on disk.
const (
	bucketMarker = ".bucket"
	objectMarker = ".entry"
)

// SharedFilesystem mirrors the cached hierarchy as empty files on an
// externally-mounted directory, so a cluster of processes can agree on
// which just-written objects must appear in listings. Object
// names are mirrored onto nested directories the same way the store's
// flat namespace already reads as a tree; a directory-path entry (object
// name ending in the delimiter) is recorded as a directory plus an
// ".entry" marker file inside it, so that a bare intermediate directory
// created only to hold deeper descendants is not mistaken for a cached
// entry of its own.
type SharedFilesystem struct {
	cfg      Config
	basePath string
}

var _ Backend = (*SharedFilesystem)(nil)

// NewSharedFilesystem mounts the cache at basePath, which must already
// exist and be writable (typically an NFS-style shared mount).
func NewSharedFilesystem(basePath string, cfg Config) *SharedFilesystem {
	return &SharedFilesystem{cfg: cfg, basePath: basePath}
}

func (s *SharedFilesystem) bucketDir(bucket string) string {
	return filepath.Join(s.basePath, bucket)
}

// objectPath returns the directory that should exist for id's object name
// and the marker file within it that records the entry itself.
func (s *SharedFilesystem) objectPath(id path.ResourceID) (dir, marker string) {
	name := id.Object()
	if strings.HasSuffix(name, "/") {
		dir = filepath.Join(s.bucketDir(id.Bucket()), filepath.FromSlash(name))
		return dir, filepath.Join(dir, objectMarker)
	}
	dir = filepath.Join(s.bucketDir(id.Bucket()), filepath.FromSlash(filepath.Dir(name)))
	return dir, filepath.Join(s.bucketDir(id.Bucket()), filepath.FromSlash(name))
}

func touch(markerPath string) error {
	if err := os.MkdirAll(filepath.Dir(markerPath), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(markerPath, []byte{}, 0o644)
}

// PutResource records that id is known to exist, by touching its marker
// file (creating parent directories as needed).
func (s *SharedFilesystem) PutResource(id path.ResourceID) error {
	if id.IsRoot() {
		return errors.New("cache: cannot cache the root resource")
	}
	if id.IsBucket() {
		return touch(filepath.Join(s.bucketDir(id.Bucket()), bucketMarker))
	}
	_, marker := s.objectPath(id)
	return touch(marker)
}

// PutResourceInfo is PutResource plus an ItemInfo; the shared-filesystem
// backend can only record presence and a timestamp on disk, so the
// ItemInfo itself is dropped. GetEntry always returns entries with
// ItemInfo == nil from this backend, forcing the cache-supplemented
// client to treat "known to exist" as existence-only and re-fetch details.
func (s *SharedFilesystem) PutResourceInfo(id path.ResourceID, _ gcs.ItemInfo) error {
	return s.PutResource(id)
}

func statMarker(markerPath string) (fs.FileInfo, bool, error) {
	fi, err := os.Stat(markerPath)
	if err == nil {
		return fi, true, nil
	}
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	return nil, false, err
}

// GetEntry stats id's marker file; last-modified-time becomes
// CreationTimeMs.
func (s *SharedFilesystem) GetEntry(id path.ResourceID) (*CacheEntry, error) {
	if id.IsRoot() {
		return nil, nil
	}

	var markerPath string
	if id.IsBucket() {
		markerPath = filepath.Join(s.bucketDir(id.Bucket()), bucketMarker)
	} else {
		_, markerPath = s.objectPath(id)
	}

	fi, ok, err := statMarker(markerPath)
	if err != nil || !ok {
		return nil, err
	}

	entry := &CacheEntry{ResourceID: id, CreationTimeMs: fi.ModTime().UnixMilli()}
	if s.cfg.MaxEntryAge > 0 && time.Since(fi.ModTime()) > s.cfg.MaxEntryAge {
		return nil, nil
	}
	return entry, nil
}

// RemoveResource unlinks id's marker file, if present.
func (s *SharedFilesystem) RemoveResource(id path.ResourceID) error {
	if id.IsRoot() {
		return nil
	}
	var markerPath string
	if id.IsBucket() {
		markerPath = filepath.Join(s.bucketDir(id.Bucket()), bucketMarker)
	} else {
		_, markerPath = s.objectPath(id)
	}
	err := os.Remove(markerPath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetBucketList lists every bucket directory under basePath whose
// ".bucket" marker exists and hasn't hard-expired.
func (s *SharedFilesystem) GetBucketList() ([]*CacheEntry, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*CacheEntry
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		entry, err := s.GetEntry(path.NewBucket(de.Name()))
		if err != nil {
			return nil, err
		}
		if entry != nil {
			out = append(out, entry)
		}
	}
	return out, nil
}

// GetObjectList walks the mirrored tree under bucket, stat-ing markers in
// place without ever holding more than one path in memory beyond the
// accumulating result slice.
func (s *SharedFilesystem) GetObjectList(bucket string) ([]*CacheEntry, error) {
	root := s.bucketDir(bucket)
	var out []*CacheEntry

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if p == root {
			return nil
		}
		base := d.Name()
		if base == bucketMarker || base == objectMarker {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		objName := filepath.ToSlash(rel)

		if d.IsDir() {
			markerID := path.NewObject(bucket, objName+"/")
			entry, err := s.GetEntry(markerID)
			if err != nil {
				return err
			}
			if entry != nil {
				out = append(out, entry)
			}
			return nil
		}

		entry, err := s.GetEntry(path.NewObject(bucket, objName))
		if err != nil {
			return err
		}
		if entry != nil {
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sweep walks every bucket directory and unlinks markers older than
// MaxEntryAge, in place, returning the number removed. A bucket whose own
// ".bucket" marker has expired is removed with its whole mirrored
// subtree, so it disappears together with all its object entries.
func (s *SharedFilesystem) Sweep() int {
	if s.cfg.MaxEntryAge <= 0 {
		return 0
	}

	buckets, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0
	}

	removed := 0
	for _, de := range buckets {
		if !de.IsDir() {
			continue
		}
		dir := s.bucketDir(de.Name())

		if fi, ok, err := statMarker(filepath.Join(dir, bucketMarker)); err == nil && ok {
			if time.Since(fi.ModTime()) > s.cfg.MaxEntryAge {
				removed += countMarkers(dir)
				_ = os.RemoveAll(dir)
				continue
			}
		}

		// Every regular file under the bucket directory is a marker: plain
		// object entries sit at their mirrored path, directory-path entries
		// as ".entry" files.
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}
			if time.Since(fi.ModTime()) > s.cfg.MaxEntryAge {
				if os.Remove(p) == nil {
					removed++
				}
			}
			return nil
		})
	}
	return removed
}

func countMarkers(dir string) int {
	n := 0
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}
