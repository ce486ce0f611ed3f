// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/oneconcern/coldstore/pkg/storage/status"
)

// Store implementations know how to write objects to a K/V model.
//
// Typically this is something file system-like. Examples are S3, local FS, NFS, ...
// Implementations of this interface are assumed to be fairly simple.
//
// Get returns an error matching status.ErrNotExists when the key is missing.
// Has reports a missing key as (false, nil); any other failure is returned as an error.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader) error
}

// ReadAll fetches a whole object into memory
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()
	object, err := io.ReadAll(reader)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return object, nil
}

// PutBytes writes a whole object from memory
func PutBytes(ctx context.Context, store Store, key string, object []byte) error {
	return store.Put(ctx, key, bytes.NewReader(object))
}
