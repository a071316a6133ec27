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
	"io"
	"sort"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/gcsio-go/cache"
	"github.com/GoogleCloudPlatform/gcsio-go/cache/caching"
	"github.com/GoogleCloudPlatform/gcsio-go/cfg"
	"github.com/GoogleCloudPlatform/gcsio-go/clock"
	"github.com/GoogleCloudPlatform/gcsio-go/common"
	"github.com/GoogleCloudPlatform/gcsio-go/fserrors"
	"github.com/GoogleCloudPlatform/gcsio-go/gcs"
	"github.com/GoogleCloudPlatform/gcsio-go/path"
	"github.com/GoogleCloudPlatform/gcsio-go/timestamp"
)

// FileSystem is the public facade: it composes the resource identifier,
// object store client (possibly cache-supplemented), path semantics, and
// the timestamp updater into the create/open/delete/mkdirs/rename/
// list/get/exists surface. It owns a single handle to the outermost
// client layer. There are no back-references between the facade and
// the cache.
type FileSystem struct {
	client  gcs.Client
	cfg     cfg.Config
	clk     clock.Clock
	updater *timestamp.Updater
	metrics common.MetricHandle
}

// New builds a FileSystem over client, the bare store client. When
// config.MetadataCache.Enabled, client is wrapped with the configured
// directory list cache backend (process-local by default,
// filesystem-backed when config.MetadataCache.Type selects it), so
// callers pass the unwrapped client and let configuration decide the
// stack. A nil clk defaults to clock.RealClock{}; a nil metrics handle
// defaults to a no-op. When cfg.TimestampUpdates.Enabled, a background
// updater is started and owned by the returned FileSystem; Close shuts
// it down.
func New(client gcs.Client, config cfg.Config, clk clock.Clock, metrics common.MetricHandle) (*FileSystem, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if metrics == nil {
		metrics = common.NewNoopMetrics()
	}

	if config.MetadataCache.Enabled {
		backend, err := newCacheBackend(config.MetadataCache, clk)
		if err != nil {
			return nil, err
		}
		cacheCfg := cache.Config{
			MaxEntryAge: config.MetadataCache.MaxEntryAge,
			MaxInfoAge:  config.MetadataCache.MaxInfoAge,
		}
		client = caching.New(client, backend, cacheCfg, clk, metrics)
	}

	fs := &FileSystem{client: client, cfg: config, clk: clk, metrics: metrics}

	if config.TimestampUpdates.Enabled {
		updater, err := timestamp.New(client, timestamp.Config{
			Workers:  config.TimestampUpdates.Workers,
			Includes: config.TimestampUpdates.Includes,
			Excludes: config.TimestampUpdates.Excludes,
		}, clk, metrics)
		if err != nil {
			return nil, err
		}
		fs.updater = updater
	}

	return fs, nil
}

func newCacheBackend(mc cfg.MetadataCacheConfig, clk clock.Clock) (cache.Backend, error) {
	cacheCfg := cache.Config{MaxEntryAge: mc.MaxEntryAge, MaxInfoAge: mc.MaxInfoAge}
	switch mc.Type {
	case cfg.FilesystemBacked:
		if mc.BasePath == "" {
			return nil, fserrors.NewInvalidArgument("metadata cache: base path is required for the %s backend", cfg.FilesystemBacked)
		}
		return cache.NewSharedFilesystem(mc.BasePath, cacheCfg), nil
	default:
		return cache.NewProcessLocal(cacheCfg, clk), nil
	}
}

// Close drains the timestamp updater, waiting up to 10s before returning
// regardless.
func (fs *FileSystem) Close() error {
	if fs.updater != nil {
		fs.updater.Close(10 * time.Second)
	}
	return nil
}

func (fs *FileSystem) enqueueTimestampUpdate(modified, excluded []path.ResourceID) {
	if fs.updater == nil {
		return
	}
	fs.updater.Enqueue(timestamp.Task{ModifiedPaths: modified, ExcludedParents: excluded})
}

// stat implements getStatus(p): batch-fetch p and toDirectoryPath(p),
// prefer the existing one, and fall back to implicit-directory inference
// when neither resolves and inference is enabled. Inference here is
// read-only: a status lookup never materializes a placeholder, so a
// materialized entry is always preferred over an inferred one when both
// could describe the same directory.
func (fs *FileSystem) stat(ctx context.Context, id path.ResourceID) (FileInfo, error) {
	if id.IsRoot() {
		return FileInfo{Path: id.String(), IsDirectory: true, Exists: true}, nil
	}

	fileForm := id.ToFilePath()
	dirForm := id.ToDirectoryPath()

	ids := []path.ResourceID{fileForm}
	if !dirForm.Equal(fileForm) {
		ids = append(ids, dirForm)
	}
	infos, err := fs.client.GetInfos(ctx, ids)
	if err != nil {
		return FileInfo{}, err
	}

	if infos[0].Exists {
		return fs.toFileInfo(fileForm, infos[0]), nil
	}

	dirInfo := infos[0]
	if len(infos) > 1 {
		dirInfo = infos[1]
	}
	if dirInfo.Exists {
		return fs.toFileInfo(dirForm, dirInfo), nil
	}

	if fs.cfg.InferImplicitDirectories {
		if info, exists := fs.inferDirectory(ctx, dirForm); exists {
			return fs.toFileInfo(dirForm, info), nil
		}
	}

	return FileInfo{Path: id.String(), Exists: false}, nil
}

// GetStatus resolves uri to a FileInfo. It never raises NotFound itself;
// the returned FileInfo.Exists is false when uri does not resolve.
func (fs *FileSystem) GetStatus(ctx context.Context, uri string) (fi FileInfo, err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpGetStatus, start, err) }()

	var id path.ResourceID
	id, err = path.Parse(uri, true)
	if err != nil {
		return FileInfo{}, err
	}
	fi, err = fs.stat(ctx, id)
	return fi, err
}

// Exists is a convenience wrapper over GetStatus.
func (fs *FileSystem) Exists(ctx context.Context, uri string) (exists bool, err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpExists, start, err) }()

	fi, err := fs.GetStatus(ctx, uri)
	if err != nil {
		return false, err
	}
	return fi.Exists, nil
}

// ListStatus lists uri's children, or returns uri itself as a single
// result when it names a file.
func (fs *FileSystem) ListStatus(ctx context.Context, uri string) (result []FileInfo, err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpListStatus, start, err) }()

	var id path.ResourceID
	id, err = path.Parse(uri, true)
	if err != nil {
		return nil, err
	}

	if id.IsRoot() {
		infos, lErr := fs.client.ListBucketInfos(ctx)
		if lErr != nil {
			err = lErr
			return nil, err
		}
		out := make([]FileInfo, len(infos))
		for i, info := range infos {
			out[i] = fs.toFileInfo(info.ResourceID, info)
		}
		return out, nil
	}

	fileForm := id.ToFilePath()
	dirForm := id.ToDirectoryPath()

	lookupIDs := []path.ResourceID{fileForm}
	if !dirForm.Equal(fileForm) {
		lookupIDs = append(lookupIDs, dirForm)
	}
	infos, gErr := fs.client.GetInfos(ctx, lookupIDs)
	if gErr != nil {
		err = gErr
		return nil, err
	}

	if infos[0].Exists {
		return []FileInfo{fs.toFileInfo(fileForm, infos[0])}, nil
	}

	dirExists := infos[0].Exists
	if len(infos) > 1 {
		dirExists = infos[1].Exists
	}
	if !dirExists && fs.cfg.InferImplicitDirectories {
		_, dirExists = fs.repairOrInfer(ctx, dirForm)
	}
	if !dirExists {
		err = fserrors.NewNotFound("listStatus: %s not found", id)
		return nil, err
	}

	prefix := ""
	if dirForm.IsObject() {
		prefix = dirForm.Object()
	}
	listed, lErr := fs.client.ListObjectInfos(ctx, dirForm.Bucket(), prefix, "/")
	if lErr != nil {
		err = lErr
		return nil, err
	}
	out := make([]FileInfo, 0, len(listed))
	for _, info := range listed {
		// A materialized directory's own placeholder matches the listing
		// prefix exactly and would otherwise show up among its children.
		if info.ResourceID.Equal(dirForm) {
			continue
		}
		out = append(out, fs.toFileInfo(info.ResourceID, info))
	}
	return out, nil
}

// Open returns a seekable read channel for the file at uri. Fails
// NotFound if absent, InvalidArgument if uri names a directory. The
// channel holds ctx for the ranged requests it issues lazily; it is
// scoped to the caller, who must Close it.
func (fs *FileSystem) Open(ctx context.Context, uri string) (r io.ReadSeekCloser, err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpOpen, start, err) }()

	var id path.ResourceID
	id, err = path.Parse(uri, false)
	if err != nil {
		return nil, err
	}
	if id.IsDirectoryPath() {
		err = fserrors.NewInvalidArgument("open: %s is a directory path", id)
		return nil, err
	}

	var fi FileInfo
	fi, err = fs.stat(ctx, id)
	if err != nil {
		return nil, err
	}
	if !fi.Exists {
		err = fserrors.NewNotFound("open: %s not found", id)
		return nil, err
	}
	if fi.IsDirectory {
		err = fserrors.NewInvalidArgument("open: %s is a directory", id)
		return nil, err
	}

	return gcs.NewSeekReadChannel(ctx, fs.client, id, fi.Size), nil
}

// Create opens uri for writing. Fails if uri is a directory path, or if a
// directory already exists at that name. mkdirs(parent(uri)) runs first
// so the write never lands under a missing ancestor.
func (fs *FileSystem) Create(ctx context.Context, uri string, opts gcs.CreateObjectOptions) (w io.WriteCloser, err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpCreate, start, err) }()

	var id path.ResourceID
	id, err = path.Parse(uri, false)
	if err != nil {
		return nil, err
	}
	if id.IsDirectoryPath() {
		err = fserrors.NewInvalidArgument("create: %s is a directory path", id)
		return nil, err
	}

	dirForm := id.ToDirectoryPath()
	var dirInfo gcs.ItemInfo
	dirInfo, err = fs.client.GetInfo(ctx, dirForm)
	if err != nil {
		return nil, err
	}
	if dirInfo.Exists {
		err = fserrors.NewAlreadyExists("create: %s exists as a directory", dirForm)
		return nil, err
	}

	if err = fs.mkdirs(ctx, id.Parent()); err != nil {
		return nil, err
	}

	if fs.cfg.CreateMarkerFiles {
		// Materialize a zero-byte placeholder under an if-not-exists
		// precondition so a concurrent identical create loses now, not at
		// its writer's close. Our own writer then overwrites the marker.
		var marker io.WriteCloser
		marker, err = fs.client.CreateWriter(ctx, id, gcs.CreateObjectOptions{
			ContentType: opts.ContentType,
			Metadata:    opts.Metadata,
		})
		if err == nil {
			err = marker.Close()
		}
		if err != nil {
			if fserrors.IsFailedPrecondition(err) {
				err = fserrors.NewAlreadyExists("create: %s already exists", id)
			}
			return nil, err
		}
		opts.OverwriteExisting = true
	}

	w, err = fs.client.CreateWriter(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	fs.enqueueTimestampUpdate([]path.ResourceID{id}, nil)
	return w, nil
}

// Mkdirs creates uri and every missing directory ancestor of it. The
// bucket itself must already exist; this layer has no createBucket
// operation.
func (fs *FileSystem) Mkdirs(ctx context.Context, uri string) (err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpMkdirs, start, err) }()

	var id path.ResourceID
	id, err = path.Parse(uri, true)
	if err != nil {
		return err
	}
	return fs.mkdirs(ctx, id)
}

func (fs *FileSystem) mkdirs(ctx context.Context, id path.ResourceID) error {
	if id.IsRoot() {
		return nil
	}

	dirID := id.ToDirectoryPath()
	ancestors := path.StrictPrefixes(dirID)
	dirPrefixes := make([]path.ResourceID, 0, len(ancestors)+1)
	dirPrefixes = append(dirPrefixes, ancestors...)
	dirPrefixes = append(dirPrefixes, dirID)

	checkIDs := make([]path.ResourceID, 0, len(dirPrefixes)*2)
	checkIDs = append(checkIDs, dirPrefixes...)
	for _, d := range dirPrefixes {
		if d.IsObject() {
			checkIDs = append(checkIDs, d.ToFilePath())
		}
	}

	infos, err := fs.client.GetInfos(ctx, checkIDs)
	if err != nil {
		return err
	}
	infoByURI := make(map[string]gcs.ItemInfo, len(checkIDs))
	for i, cid := range checkIDs {
		infoByURI[cid.String()] = infos[i]
	}

	for _, d := range dirPrefixes {
		if !d.IsObject() {
			continue
		}
		fileForm := d.ToFilePath()
		if info := infoByURI[fileForm.String()]; info.Exists && !info.Inferred {
			return fserrors.NewInvalidArgument("mkdirs: %s exists as a file, cannot create directory %s", fileForm, d)
		}
	}

	var toCreate []path.ResourceID
	for _, d := range dirPrefixes {
		info := infoByURI[d.String()]
		if info.Exists {
			continue
		}
		if d.IsBucket() {
			return fserrors.NewNotFound("mkdirs: bucket %q does not exist", d.Bucket())
		}
		toCreate = append(toCreate, d)
	}

	if len(toCreate) == 0 {
		return nil
	}
	if err := fs.client.CreateEmpty(ctx, toCreate); err != nil {
		return err
	}

	fs.enqueueTimestampUpdate(toCreate, toCreate)
	return nil
}

// Delete removes uri. Non-recursive delete of a non-empty directory fails
// DirectoryNotEmpty.
func (fs *FileSystem) Delete(ctx context.Context, uri string, recursive bool) (err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpDelete, start, err) }()

	var id path.ResourceID
	id, err = path.Parse(uri, true)
	if err != nil {
		return err
	}

	var fi FileInfo
	fi, err = fs.stat(ctx, id)
	if err != nil {
		return err
	}
	if !fi.Exists {
		err = fserrors.NewNotFound("delete: %s not found", id)
		return err
	}

	if !fi.IsDirectory {
		if err = fs.client.Delete(ctx, []gcs.DeleteRequest{{ResourceID: id, GenerationPrecond: fi.Generation}}); err != nil {
			return err
		}
		fs.enqueueTimestampUpdate([]path.ResourceID{id}, nil)
		return nil
	}

	dirID := id.ToDirectoryPath()
	var children []gcs.ItemInfo
	children, err = fs.listDescendants(ctx, dirID)
	if err != nil {
		return err
	}

	if !recursive && len(children) > 0 {
		err = fserrors.NewDirectoryNotEmpty("delete: %s is not empty", dirID)
		return err
	}

	generationByURI := make(map[string]int64, len(children)+1)
	generationByURI[dirID.String()] = fi.Generation
	all := make([]path.ResourceID, 0, len(children)+1)
	all = append(all, dirID)
	for _, c := range children {
		generationByURI[c.ResourceID.String()] = c.Generation
		all = append(all, c.ResourceID)
	}
	path.SortDescending(all)

	var objectReqs []gcs.DeleteRequest
	var bucketToDelete string
	for _, r := range all {
		if r.IsBucket() {
			bucketToDelete = r.Bucket()
			continue
		}
		objectReqs = append(objectReqs, gcs.DeleteRequest{ResourceID: r, GenerationPrecond: generationByURI[r.String()]})
	}

	if len(objectReqs) > 0 {
		if err = fs.client.Delete(ctx, objectReqs); err != nil {
			return err
		}
	}

	if bucketToDelete != "" {
		if err = fs.client.WaitForBucketEmpty(ctx, bucketToDelete); err != nil {
			return err
		}
		if err = fs.client.DeleteBuckets(ctx, []string{bucketToDelete}); err != nil {
			return err
		}
	}

	fs.enqueueTimestampUpdate(all, all)
	return nil
}

// listDescendants returns every object recursively under dirID (no
// delimiter), including materialized directory placeholders, but never
// dirID itself: a non-delimited listing whose prefix matches an object
// name exactly (dirID's own placeholder) returns that object too, and
// "descendants" must never include the directory being asked about.
func (fs *FileSystem) listDescendants(ctx context.Context, dirID path.ResourceID) ([]gcs.ItemInfo, error) {
	prefix := ""
	if dirID.IsObject() {
		prefix = dirID.Object()
	}
	infos, err := fs.client.ListObjectInfos(ctx, dirID.Bucket(), prefix, "")
	if err != nil {
		return nil, err
	}
	descendants := make([]gcs.ItemInfo, 0, len(infos))
	for _, info := range infos {
		if info.ResourceID.Equal(dirID) {
			continue
		}
		descendants = append(descendants, info)
	}
	return descendants, nil
}

// Rename moves src to dst, recursively for directories.
func (fs *FileSystem) Rename(ctx context.Context, srcURI, dstURI string) (err error) {
	start := time.Now()
	defer func() { common.CaptureFacadeOp(ctx, fs.metrics, common.OpRename, start, err) }()

	var src, dst path.ResourceID
	src, err = path.Parse(srcURI, true)
	if err != nil {
		return err
	}
	dst, err = path.Parse(dstURI, true)
	if err != nil {
		return err
	}

	if src.IsRoot() {
		err = fserrors.NewInvalidArgument("rename: cannot rename root")
		return err
	}

	var srcInfo FileInfo
	srcInfo, err = fs.stat(ctx, src)
	if err != nil {
		return err
	}
	if !srcInfo.Exists {
		err = fserrors.NewNotFound("rename: %s not found", src)
		return err
	}
	if dst.IsRoot() {
		err = fserrors.NewInvalidArgument("rename: cannot rename onto root")
		return err
	}

	var dstParentInfo FileInfo
	dstParentInfo, err = fs.stat(ctx, dst.Parent())
	if err != nil {
		return err
	}
	if !dstParentInfo.Exists {
		err = fserrors.NewNotFound("rename: parent of %s does not exist", dst)
		return err
	}

	dst, err = fs.normalizeRenameDest(ctx, src, dst, srcInfo.IsDirectory)
	if err != nil {
		return err
	}

	var dstFileInfo FileInfo
	dstFileInfo, err = fs.stat(ctx, dst.ToFilePath())
	if err != nil {
		return err
	}
	if dstFileInfo.Exists && !dstFileInfo.IsDirectory {
		err = fserrors.NewAlreadyExists("rename: destination %s exists", dst)
		return err
	}

	if srcInfo.IsDirectory {
		err = fs.renameDirectory(ctx, src, dst, srcInfo.Generation)
	} else {
		err = fs.renameFile(ctx, src, dst, srcInfo.Generation)
	}
	if err != nil {
		return err
	}

	fs.enqueueTimestampUpdate([]path.ResourceID{dst}, nil)
	return nil
}

// normalizeRenameDest implements rename's destination-reinterpretation
// rule: whenever dst resolves to an existing directory, whether given in
// file-path or directory-path form, src is renamed into it under its
// own leaf name, matching ordinary "mv into directory" semantics for both
// file and directory sources. Otherwise a directory source's destination
// is normalized to directory-path form (it is about to be created fresh
// as that directory); a file source's destination is left as given.
func (fs *FileSystem) normalizeRenameDest(ctx context.Context, src, dst path.ResourceID, srcIsDir bool) (path.ResourceID, error) {
	dirForm := dst.ToDirectoryPath()
	info, err := fs.stat(ctx, dirForm)
	if err != nil {
		return path.ResourceID{}, err
	}
	if info.Exists && info.IsDirectory {
		dst = joinUnderDir(dirForm, src.LeafName())
		if srcIsDir {
			dst = dst.ToDirectoryPath()
		}
		return dst, nil
	}

	if srcIsDir {
		dst = dirForm
	}
	return dst, nil
}

func joinUnderDir(dirID path.ResourceID, rel string) path.ResourceID {
	if dirID.IsBucket() {
		return path.NewObject(dirID.Bucket(), rel)
	}
	return path.NewObject(dirID.Bucket(), dirID.Object()+rel)
}

func (fs *FileSystem) renameFile(ctx context.Context, src, dst path.ResourceID, srcGeneration int64) error {
	failed, err := fs.client.Copy(ctx, []path.ResourceID{src}, []path.ResourceID{dst})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fserrors.NewFailedPrecondition(nil, "rename: copy %s -> %s failed", src, dst)
	}
	return fs.client.Delete(ctx, []gcs.DeleteRequest{{ResourceID: src, GenerationPrecond: srcGeneration}})
}

func (fs *FileSystem) renameDirectory(ctx context.Context, src, dst path.ResourceID, srcGeneration int64) error {
	srcDir := src.ToDirectoryPath()
	dstDir := dst.ToDirectoryPath()

	if dstDir.IsBucket() {
		info, err := fs.stat(ctx, dstDir)
		if err != nil {
			return err
		}
		if !info.Exists {
			return fserrors.NewNotFound("rename: destination bucket %q does not exist", dstDir.Bucket())
		}
	}

	descendants, err := fs.listDescendants(ctx, srcDir)
	if err != nil {
		return err
	}
	sort.Slice(descendants, func(i, j int) bool {
		return path.Less(descendants[i].ResourceID, descendants[j].ResourceID)
	})

	generationByURI := make(map[string]int64, len(descendants)+1)
	generationByURI[srcDir.String()] = srcGeneration

	srcIDs := make([]path.ResourceID, len(descendants))
	dstIDs := make([]path.ResourceID, len(descendants))
	srcPrefix := ""
	if srcDir.IsObject() {
		srcPrefix = srcDir.Object()
	}
	for i, info := range descendants {
		r := info.ResourceID
		rel := strings.TrimPrefix(r.Object(), srcPrefix)
		srcIDs[i] = r
		dstIDs[i] = joinUnderDir(dstDir, rel)
		generationByURI[r.String()] = info.Generation
	}

	if dstDir.IsObject() {
		if err := fs.client.CreateEmpty(ctx, []path.ResourceID{dstDir}); err != nil {
			return err
		}
	}

	if len(srcIDs) > 0 {
		failed, err := fs.client.Copy(ctx, srcIDs, dstIDs)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return fserrors.NewFailedPrecondition(nil, "rename: %d of %d copies failed", len(failed), len(srcIDs))
		}
	}

	var deleteIDs []path.ResourceID
	if srcDir.IsObject() {
		deleteIDs = append(deleteIDs, srcDir)
	}
	deleteIDs = append(deleteIDs, srcIDs...)
	path.SortDescending(deleteIDs)
	if len(deleteIDs) > 0 {
		deleteReqs := make([]gcs.DeleteRequest, len(deleteIDs))
		for i, id := range deleteIDs {
			deleteReqs[i] = gcs.DeleteRequest{ResourceID: id, GenerationPrecond: generationByURI[id.String()]}
		}
		if err := fs.client.Delete(ctx, deleteReqs); err != nil {
			return err
		}
	}

	if src.IsBucket() {
		if err := fs.client.WaitForBucketEmpty(ctx, src.Bucket()); err != nil {
			return err
		}
		if err := fs.client.DeleteBuckets(ctx, []string{src.Bucket()}); err != nil {
			return err
		}
	}

	return nil
}
