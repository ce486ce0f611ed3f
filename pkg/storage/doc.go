// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// This package supports the following backends:
//   - S3 (AWS and S3-compatible endpoints)
//   - local file system
package storage
