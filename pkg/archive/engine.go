// Copyright © 2018 One Concern

// Package archive uploads files to an object store and restores them.
//
// File content is addressed by its SHA-512 checksum, so identical content is stored
// once. Files larger than the chunk size are split, and each chunk is stored on its own.
// Every archived path is recorded in the catalog.
package archive

import (
	"context"

	units "github.com/docker/go-units"
	"github.com/oneconcern/coldstore/pkg/archive/status"
	"github.com/oneconcern/coldstore/pkg/catalog"
	catalogstatus "github.com/oneconcern/coldstore/pkg/catalog/status"
	codecstatus "github.com/oneconcern/coldstore/pkg/codec/status"
	"github.com/oneconcern/coldstore/pkg/crawler"
	"github.com/oneconcern/coldstore/pkg/errors"
	"github.com/oneconcern/coldstore/pkg/storage"
	storagestatus "github.com/oneconcern/coldstore/pkg/storage/status"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the size above which files are split
	DefaultChunkSize = 256 * units.MiB

	// DefaultUploadWorkers is the number of files uploaded concurrently
	DefaultUploadWorkers = 20

	// DefaultRestoreWorkers is the number of entries restored concurrently
	DefaultRestoreWorkers = 1
)

// Codec transforms content before it is stored
type Codec interface {
	Encode([]byte) ([]byte, error)
	Decode([]byte) ([]byte, error)
}

// Engine archives and restores files
type Engine struct {
	store   storage.Store
	catalog *catalog.Catalog
	codec   Codec
	crawler *crawler.Crawler
	l       *zap.Logger

	chunkSize      int64
	uploadWorkers  int
	restoreWorkers int
}

// Option for the engine
type Option func(*Engine)

// Logger for the engine
func Logger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// ChunkSize sets the size above which files are split. Non-positive sizes are ignored.
func ChunkSize(size int64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.chunkSize = size
		}
	}
}

// Crawler sets the crawler used to discover files in directories
func Crawler(c *crawler.Crawler) Option {
	return func(e *Engine) {
		if c != nil {
			e.crawler = c
		}
	}
}

// UploadWorkers sets the number of concurrent uploads in a batch
func UploadWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.uploadWorkers = n
		}
	}
}

// RestoreWorkers sets the number of concurrent restores in a batch
func RestoreWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.restoreWorkers = n
		}
	}
}

// New archive engine
func New(store storage.Store, cat *catalog.Catalog, codec Codec, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		catalog:        cat,
		codec:          codec,
		l:              zap.NewNop(),
		chunkSize:      DefaultChunkSize,
		uploadWorkers:  DefaultUploadWorkers,
		restoreWorkers: DefaultRestoreWorkers,
	}
	for _, apply := range opts {
		apply(e)
	}
	if e.crawler == nil {
		e.crawler = crawler.New(crawler.Logger(e.l))
	}
	return e
}

// Report sums up a batch
type Report struct {
	Processed int64
	Uploaded  int64
	Restored  int64
	Skipped   int64
	Failed    int64
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeSkipped
)

type counters struct {
	processed atomic.Int64
	uploaded  atomic.Int64
	restored  atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func (c *counters) report() Report {
	return Report{
		Processed: c.processed.Load(),
		Uploaded:  c.uploaded.Load(),
		Restored:  c.restored.Load(),
		Skipped:   c.skipped.Load(),
		Failed:    c.failed.Load(),
	}
}

func (c *counters) record(done *atomic.Int64, result outcome, err error) {
	c.processed.Inc()
	switch {
	case err != nil:
		c.failed.Inc()
	case result == outcomeSkipped:
		c.skipped.Inc()
	default:
		done.Inc()
	}
}

// IsFatal tells if an error must abort a batch.
//
// Failures of the object store, of the codec or of the catalog are fatal, and so is
// restored content which does not match its checksum. Any other failure only
// concerns the path at hand.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, catalogstatus.ErrAlreadyExists) {
		return false
	}
	for _, fatal := range []error{
		storagestatus.ErrStorageAPI,
		storagestatus.ErrUnauthorized,
		storagestatus.ErrForbidden,
		storagestatus.ErrInvalidResource,
		storagestatus.ErrNotFound,
		codecstatus.ErrIntegrity,
		codecstatus.ErrFormat,
		codecstatus.ErrInvalidKey,
		status.ErrChecksumMismatch,
		catalogstatus.ErrInvalidEntry,
		catalogstatus.ErrLoad,
		catalogstatus.ErrFlush,
	} {
		if errors.Is(err, fatal) {
			return true
		}
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
