// Copyright © 2018 One Concern

// Package status exports errors produced by the archive engine.
package status

import "github.com/oneconcern/coldstore/pkg/errors"

var (
	// ErrNotFound indicates that no catalog entry matches the requested path
	ErrNotFound = errors.New("entry not found in catalog")

	// ErrChunkNotFound indicates that a chunk of a catalogued file is missing from the store
	ErrChunkNotFound = errors.New("chunk for file not found")

	// ErrUnsupportedType indicates a path which is neither a regular file nor a symbolic link
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrChecksumMismatch indicates restored content which does not match its checksum
	ErrChecksumMismatch = errors.New("checksum mismatch")
)
