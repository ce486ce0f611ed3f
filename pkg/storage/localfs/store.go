// Copyright © 2018 One Concern

// Package localfs implements a storage.Store on top of an afero file system.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/coldstore/pkg/storage"
	"github.com/oneconcern/coldstore/pkg/storage/status"
	"github.com/spf13/afero"
)

// DefaultPath is the location of objects when no file system is provided
var DefaultPath = filepath.Join(".coldstore", "objects")

// New creates a new local file system backed storage model
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), DefaultPath)
	}
	return &localFS{
		fs: fs,
	}
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.ErrStorageAPI.Wrap(err)
	}

	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.WrapMessage(key)
	}
	t, err := l.fs.Open(key)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return t, nil
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader) error {
	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring directories for %q: %w", key, err))
		}
	}
	target, err := l.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("create record for %q: %w", key, err))
	}
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		return status.ErrStorageAPI.Wrap(fmt.Errorf("write record for %q: %w", key, err))
	}
	if err = target.Close(); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}

/* thread-safe local storage implementation.
 * use a decorator pattern to implement atomic Put()s via atomicity of afero.Fs.Rename()
 * for those filesystems where Rename() is thread-safe:  files are placed in a staging area,
 * then Rename()d into place.
 */

/* staging area key prefix and helper functions */
const (
	nestedPutStageName = ".put-stage"
)

func maybeInvalidKey(key string) error {
	const pathSepString = string(os.PathSeparator)
	pathComponents := strings.Split(strings.TrimLeft(key, pathSepString), pathSepString)
	if len(pathComponents) == 0 {
		return nil
	}
	if pathComponents[0] == nestedPutStageName {
		return status.ErrInvalidResource.Wrap(
			fmt.Errorf("key '%v' conflicts with put staging area name '%v'", key, nestedPutStageName))
	}
	return nil
}

// NewAtomic creates a local file system store where objects are staged before being renamed into place.
//
// Readers never observe a partially written object.
func NewAtomic(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), DefaultPath)
	}
	/* the staging area exists within the afero.Fs itself */
	if err := fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return nil, fmt.Errorf("ensuring put staging directory for %q: %w", nestedPutStageName, err)
	}
	return &localFSAtomic{
		storeImpl: localFS{fs: fs},
	}, nil
}

type localFSAtomic struct {
	storeImpl localFS
}

func (l *localFSAtomic) Has(ctx context.Context, key string) (bool, error) {
	if err := maybeInvalidKey(key); err != nil {
		return false, err
	}
	return l.storeImpl.Has(ctx, key)
}

func (l *localFSAtomic) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := maybeInvalidKey(key); err != nil {
		return nil, err
	}
	return l.storeImpl.Get(ctx, key)
}

/* the Put() implementation is the only part of the Store interface implemented
 * outside of the functional wrap design pattern
 */
func (l *localFSAtomic) Put(ctx context.Context, key string, source io.Reader) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	putStageKey := filepath.Join(nestedPutStageName, key)
	if err := l.storeImpl.Put(ctx, putStageKey, source); err != nil {
		return err
	}
	/* Rename() doesn't create directories automatically */
	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.storeImpl.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring directories for %q: %w", key, err))
		}
	}
	if err := l.storeImpl.fs.Rename(putStageKey, key); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

// dupe: localFs.String
func (l *localFSAtomic) String() string {
	const localfs = "localfs-atomic"
	switch fs := l.storeImpl.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}
