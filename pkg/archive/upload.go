// Copyright © 2018 One Concern

package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oneconcern/coldstore/pkg/archive/status"
	"github.com/oneconcern/coldstore/pkg/cafs"
	"github.com/oneconcern/coldstore/pkg/catalog"
	catalogstatus "github.com/oneconcern/coldstore/pkg/catalog/status"
	"github.com/oneconcern/coldstore/pkg/errors"
	"github.com/oneconcern/coldstore/pkg/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Upload archives a single regular file or symbolic link.
//
// Paths already in the catalog are skipped.
func (e *Engine) Upload(ctx context.Context, path string) error {
	_, err := e.upload(ctx, path)
	return err
}

// UploadMany archives all files found under root. A root which is not a directory
// is uploaded on its own.
//
// Failures are logged and counted in the report. A fatal failure aborts the batch
// and is returned.
func (e *Engine) UploadMany(ctx context.Context, root string) (Report, error) {
	var c counters

	fi, err := os.Stat(root)
	if err != nil {
		return c.report(), err
	}
	if !fi.IsDir() {
		result, err := e.upload(ctx, root)
		c.record(&c.uploaded, result, err)
		return c.report(), err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.uploadWorkers)
	for path := range e.crawler.Walk(gctx, root) {
		g.Go(func() error {
			result, err := e.upload(gctx, path)
			c.record(&c.uploaded, result, err)
			if err == nil {
				return nil
			}
			if IsFatal(err) {
				e.l.Error("upload aborted", zap.String("path", path), zap.Error(err))
				return err
			}
			e.l.Error("upload failed", zap.String("path", path), zap.Error(err))
			return nil
		})
	}
	err = g.Wait()

	report := c.report()
	e.l.Info("upload batch done",
		zap.String("root", root),
		zap.Int64("processed", report.Processed),
		zap.Int64("uploaded", report.Uploaded),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("failed", report.Failed),
	)
	return report, err
}

func (e *Engine) upload(ctx context.Context, path string) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcomeDone, err
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return outcomeDone, err
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return outcomeDone, err
	}
	if !fi.Mode().IsRegular() && fi.Mode()&os.ModeSymlink == 0 {
		return outcomeDone, status.ErrUnsupportedType.WrapMessage(fmt.Sprintf("%s (%v)", path, fi.Mode().Type()))
	}

	if e.catalog.Exists(path) {
		e.l.Info("already uploaded", zap.String("path", path))
		return outcomeSkipped, nil
	}

	var entry catalog.Entry
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		entry, err = e.uploadLink(path, fi)
	case fi.Size() > e.chunkSize:
		entry, err = e.uploadChunks(ctx, path, fi)
	default:
		entry, err = e.uploadWhole(ctx, path, fi)
	}
	if err != nil {
		return outcomeDone, err
	}

	if err = e.catalog.Insert(entry); err != nil {
		if errors.Is(err, catalogstatus.ErrAlreadyExists) {
			e.l.Info("already uploaded", zap.String("path", path))
			return outcomeSkipped, nil
		}
		return outcomeDone, err
	}
	return outcomeDone, nil
}

func (e *Engine) uploadLink(path string, fi os.FileInfo) (catalog.Entry, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return catalog.Entry{}, err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}

	e.l.Info("link", zap.String("path", path), zap.String("target", target))
	return catalog.Entry{
		Path:       path,
		Kind:       catalog.KindLink,
		ModifiedAt: fi.ModTime(),
		LinkTarget: target,
	}, nil
}

func (e *Engine) uploadWhole(ctx context.Context, path string, fi os.FileInfo) (catalog.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.Entry{}, err
	}

	key := cafs.Sum(data)
	if err = e.put(ctx, key, data); err != nil {
		return catalog.Entry{}, err
	}

	e.l.Info("uploaded", zap.String("path", path), zap.Stringer("key", key), zap.Int("size", len(data)))
	return catalog.Entry{
		Path:            path,
		Kind:            catalog.KindFile,
		Size:            uint64(len(data)),
		ModifiedAt:      fi.ModTime(),
		ContentChecksum: key.String(),
	}, nil
}

func (e *Engine) uploadChunks(ctx context.Context, path string, fi os.FileInfo) (catalog.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return catalog.Entry{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	var (
		chunks []string
		size   uint64
		stored int
	)
	buf := make([]byte, e.chunkSize)
	for {
		if err = ctx.Err(); err != nil {
			return catalog.Entry{}, err
		}

		n, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return catalog.Entry{}, fmt.Errorf("reading chunk %d of %q: %w", len(chunks), path, err)
		}
		chunk := buf[:n]

		key := cafs.Sum(chunk)
		has, herr := e.store.Has(ctx, key.String())
		if herr != nil {
			return catalog.Entry{}, herr
		}
		if !has {
			if err := e.put(ctx, key, chunk); err != nil {
				return catalog.Entry{}, err
			}
			stored++
		}
		chunks = append(chunks, key.String())
		size += uint64(n)

		if err == io.ErrUnexpectedEOF {
			break
		}
	}

	if len(chunks) == 0 {
		// truncated since it was listed
		return e.uploadWhole(ctx, path, fi)
	}

	e.l.Info("uploaded",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)),
		zap.Int("stored", stored),
		zap.Uint64("size", size),
	)
	return catalog.Entry{
		Path:           path,
		Kind:           catalog.KindFile,
		Size:           size,
		ModifiedAt:     fi.ModTime(),
		ChunkChecksums: chunks,
	}, nil
}

func (e *Engine) put(ctx context.Context, key cafs.Key, data []byte) error {
	token, err := e.codec.Encode(data)
	if err != nil {
		return err
	}
	return storage.PutBytes(ctx, e.store, key.String(), token)
}
