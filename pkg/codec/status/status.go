// Copyright © 2018 One Concern

// Package status exports errors produced by the codec package.
package status

import "github.com/oneconcern/coldstore/pkg/errors"

var (
	// ErrIntegrity indicates that a token failed authentication: it was tampered with or corrupted
	ErrIntegrity = errors.New("token integrity check failed")

	// ErrFormat indicates an authentic token with an unsupported version or layout
	ErrFormat = errors.New("unrecognized token format")

	// ErrInvalidKey indicates that the encryption key material is malformed
	ErrInvalidKey = errors.New("invalid encryption key")
)
