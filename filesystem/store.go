// Package filesystem provides a local directory backend for stowgate.
//
// Keys are opaque, so they never become directory paths: each key is stored
// under the SHA256 of its name, objects/<xx>/<hash> for the content and
// meta/<xx>/<hash>.json for a sidecar that also records the key itself. "a"
// and "a/b" can therefore live side by side, as they do on S3. Writes go
// through a temp file and a rename, etags are SHA256 of the content, and all
// access is sandboxed by an os.Root.
package filesystem

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/stowgate"
)

const (
	objectsDir = "objects"
	metaDir    = "meta"
	tmpDir     = "tmp"
)

// Store implements stowgate.ObjectStore on a local directory.
type Store struct {
	root *os.Root
}

var _ stowgate.ObjectStore = (*Store)(nil)

// NewStore prepares the directory layout inside root.
func NewStore(root *os.Root) (*Store, error) {
	for _, dir := range []string{objectsDir, metaDir, tmpDir} {
		if err := root.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("new filesystem store: create %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

type sidecar struct {
	Key         string            `json:"key"`
	ContentType string            `json:"content_type"`
	ETag        string            `json:"etag"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// entryName maps a key to <xx>/<hash>, sharded on the first hash byte.
func entryName(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return path.Join(name[:2], name)
}

func objectPath(key string) string { return path.Join(objectsDir, entryName(key)) }

func metaPath(key string) string { return path.Join(metaDir, entryName(key)+".json") }

// Get opens an object for reading.
func (s *Store) Get(ctx context.Context, key string) (stowgate.ObjectInfo, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return stowgate.ObjectInfo{}, nil, err
	}

	f, err := s.root.Open(objectPath(key))
	if err != nil {
		return stowgate.ObjectInfo{}, nil, notFoundOr("open object", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return stowgate.ObjectInfo{}, nil, fmt.Errorf("stat object: %w", err)
	}
	if fi.IsDir() {
		_ = f.Close()
		return stowgate.ObjectInfo{}, nil, fmt.Errorf("open object %s: %w", key, stowgate.ErrNotFound)
	}

	info, err := s.info(key, fi)
	if err != nil {
		_ = f.Close()
		return stowgate.ObjectInfo{}, nil, err
	}

	return info, f, nil
}

// Head returns an object's attributes.
func (s *Store) Head(ctx context.Context, key string) (stowgate.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return stowgate.ObjectInfo{}, err
	}

	fi, err := s.root.Stat(objectPath(key))
	if err != nil {
		return stowgate.ObjectInfo{}, notFoundOr("stat object", err)
	}
	if fi.IsDir() {
		return stowgate.ObjectInfo{}, fmt.Errorf("stat object %s: %w", key, stowgate.ErrNotFound)
	}

	return s.info(key, fi)
}

func (s *Store) info(key string, fi fs.FileInfo) (stowgate.ObjectInfo, error) {
	sc, err := s.readSidecar(key)
	if err != nil {
		return stowgate.ObjectInfo{}, err
	}

	return stowgate.ObjectInfo{
		Key:          key,
		ContentType:  cmp.Or(sc.ContentType, stowgate.ContentTypeOctetStream),
		Size:         fi.Size(),
		ETag:         sc.ETag,
		LastModified: fi.ModTime().UTC(),
		Metadata:     stowgate.MetadataFromMap(sc.Metadata),
	}, nil
}

func (s *Store) readSidecar(key string) (sidecar, error) {
	data, err := s.root.ReadFile(metaPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// a sidecar removed by hand leaves the object without metadata
			return sidecar{}, nil
		}
		return sidecar{}, fmt.Errorf("read metadata: %w", err)
	}

	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return sidecar{}, fmt.Errorf("parse metadata: %w", err)
	}
	return sc, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Put atomically replaces the object and its metadata. The content is
// staged in a temp file first, then the sidecar is written, and the content
// is renamed into place last: a failure never leaves new bytes behind old
// metadata.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, opts stowgate.PutOptions) (stowgate.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return stowgate.ObjectInfo{}, err
	}

	h := sha256.New()
	staged, err := s.stage(func(w io.Writer) error {
		_, err := io.Copy(io.MultiWriter(h, w), &ctxReader{ctx: ctx, r: body})
		return err
	})
	if err != nil {
		return stowgate.ObjectInfo{}, fmt.Errorf("write object: %w", err)
	}
	defer staged.discard()

	sc := sidecar{
		Key:         key,
		ContentType: cmp.Or(opts.ContentType, stowgate.ContentTypeOctetStream),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Metadata:    opts.Metadata.Map(),
	}
	if err := s.writeSidecar(key, sc); err != nil {
		return stowgate.ObjectInfo{}, err
	}

	if err := staged.commit(objectPath(key)); err != nil {
		return stowgate.ObjectInfo{}, fmt.Errorf("write object: %w", err)
	}

	return s.Head(ctx, key)
}

// ReplaceMetadata rewrites the sidecar, keeping content type and etag.
func (s *Store) ReplaceMetadata(ctx context.Context, key string, meta stowgate.Metadata) error {
	if _, err := s.Head(ctx, key); err != nil {
		return err
	}

	sc, err := s.readSidecar(key)
	if err != nil {
		return err
	}
	sc.Key = key
	sc.Metadata = meta.Map()

	return s.writeSidecar(key, sc)
}

func (s *Store) writeSidecar(key string, sc sidecar) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	staged, err := s.stage(func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err == nil {
		defer staged.discard()
		err = staged.commit(metaPath(key))
	}
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// stagedFile is a synced temp file waiting to be renamed into place.
type stagedFile struct {
	root      *os.Root
	name      string
	committed bool
}

func (s *Store) stage(fill func(io.Writer) error) (*stagedFile, error) {
	tmpFile := tmpFileName()
	t, err := s.root.Create(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("could not open temp file: %w", err)
	}
	staged := &stagedFile{root: s.root, name: tmpFile}

	err = fill(t)
	if err == nil {
		if err = t.Sync(); err != nil {
			err = fmt.Errorf("could not sync written file: %w", err)
		}
	}
	if closeErr := t.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("could not close temp file: %w", closeErr)
	}
	if err != nil {
		staged.discard()
		return nil, err
	}

	return staged, nil
}

func (f *stagedFile) commit(dest string) error {
	if err := f.root.MkdirAll(path.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("could not create intermediate directories: %w", err)
	}
	if err := f.root.Rename(f.name, dest); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	f.committed = true
	return nil
}

// discard removes the temp file unless it was committed.
func (f *stagedFile) discard() {
	if f.committed {
		return
	}
	if err := f.root.Remove(f.name); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove tmp file", "err", err)
	}
	f.committed = true
}

// Delete removes the object and its metadata. Deleting a missing object
// succeeds, as it does on S3.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(objectPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete object: %w", err)
	}

	if err := s.root.Remove(metaPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "failed to remove metadata", "key", key, "err", err)
	}

	return nil
}

// List walks the metadata sidecars and returns keys in lexical order,
// starting after q.Cursor.
func (s *Store) List(ctx context.Context, q stowgate.ListQuery) (stowgate.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return stowgate.ListResult{}, err
	}

	var keys []string
	err := fs.WalkDir(s.root.FS(), metaDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".json") {
			return nil
		}

		data, err := s.root.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		var sc sidecar
		if err := json.Unmarshal(data, &sc); err != nil || sc.Key == "" {
			slog.WarnContext(ctx, "skipping unreadable metadata file", "path", p)
			return nil
		}

		if strings.HasPrefix(sc.Key, q.Prefix) && sc.Key > q.Cursor {
			keys = append(keys, sc.Key)
		}
		return nil
	})
	if err != nil {
		return stowgate.ListResult{}, fmt.Errorf("failed to list objects: %w", err)
	}

	slices.Sort(keys)

	result := stowgate.ListResult{Items: []stowgate.ObjectInfo{}}
	if q.Limit > 0 && len(keys) > q.Limit {
		keys = keys[:q.Limit]
		result.NextCursor = keys[len(keys)-1]
	}

	for _, key := range keys {
		info, err := s.Head(ctx, key)
		if err != nil {
			if errors.Is(err, stowgate.ErrNotFound) {
				// deleted while listing, or a put that never committed
				continue
			}
			return stowgate.ListResult{}, fmt.Errorf("failed to list objects: %w", err)
		}
		result.Items = append(result.Items, info)
	}

	return result, nil
}

// Ping checks that the root directory is still accessible.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.root.Stat(objectsDir); err != nil {
		return fmt.Errorf("ping filesystem store: %w", err)
	}
	return nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, stowgate.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func tmpFileName() string {
	return path.Join(tmpDir, fmt.Sprintf(".t%s", uuid.New().String()))
}
