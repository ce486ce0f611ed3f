// Copyright © 2018 One Concern

// Package status exports errors produced by the catalog package.
package status

import "github.com/oneconcern/coldstore/pkg/errors"

var (
	// ErrAlreadyExists indicates that an entry is already recorded for this path
	ErrAlreadyExists = errors.New("entry already exists")

	// ErrInvalidEntry indicates an entry which cannot be recorded
	ErrInvalidEntry = errors.New("invalid catalog entry")

	// ErrLoad indicates a failure to retrieve the persisted catalog
	ErrLoad = errors.New("failed to load catalog")

	// ErrFlush indicates a failure to persist the catalog
	ErrFlush = errors.New("failed to flush catalog")
)
