// Copyright © 2018 One Concern

package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/coldstore/pkg/archive/status"
	"github.com/oneconcern/coldstore/pkg/cafs"
	"github.com/oneconcern/coldstore/pkg/catalog"
	"github.com/oneconcern/coldstore/pkg/errors"
	"github.com/oneconcern/coldstore/pkg/storage"
	storagestatus "github.com/oneconcern/coldstore/pkg/storage/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// RestoreOne writes the catalogued entry for path at output.
//
// Parent directories are created as needed, and the modification time is restored.
func (e *Engine) RestoreOne(ctx context.Context, path, output string) error {
	_, err := e.restoreOne(ctx, path, output)
	return err
}

// RestoreMany restores all catalogued entries with a path starting with prefix.
//
// The path of each entry relative to prefix, once their common leading segments are
// removed, is reproduced under outputRoot. Failures are logged and counted in the
// report. A fatal failure aborts the batch and is returned.
func (e *Engine) RestoreMany(ctx context.Context, prefix, outputRoot string) (Report, error) {
	var c counters

	entries := e.catalog.LookupPrefix(prefix)
	if len(entries) == 0 {
		return c.report(), status.ErrNotFound.WrapMessage(prefix)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.restoreWorkers)
	for _, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		output := filepath.Join(outputRoot, relativePath(prefix, entry.Path))
		g.Go(func() error {
			result, err := e.restoreOne(gctx, entry.Path, output)
			c.record(&c.restored, result, err)
			if err == nil {
				return nil
			}
			if IsFatal(err) {
				e.l.Error("restore aborted", zap.String("path", entry.Path), zap.Error(err))
				return err
			}
			e.l.Error("restore failed", zap.String("path", entry.Path), zap.Error(err))
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	report := c.report()
	e.l.Info("restore batch done",
		zap.String("prefix", prefix),
		zap.String("output", outputRoot),
		zap.Int64("processed", report.Processed),
		zap.Int64("restored", report.Restored),
		zap.Int64("failed", report.Failed),
	)
	return report, err
}

// relativePath strips the leading path segments shared by prefix and path
func relativePath(prefix, path string) string {
	const sep = string(filepath.Separator)
	prefixParts := strings.Split(strings.Trim(prefix, sep), sep)
	pathParts := strings.Split(strings.Trim(path, sep), sep)

	common := 0
	for common < len(prefixParts) && common < len(pathParts) && prefixParts[common] == pathParts[common] {
		common++
	}
	return filepath.Join(pathParts[common:]...)
}

func (e *Engine) restoreOne(ctx context.Context, path, output string) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcomeDone, err
	}

	entry, ok := e.catalog.LookupExact(path)
	if !ok {
		return outcomeDone, status.ErrNotFound.WrapMessage(path)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return outcomeDone, err
	}

	var err error
	switch entry.Kind {
	case catalog.KindLink:
		err = e.restoreLink(entry, output)
	default:
		err = e.restoreFile(ctx, entry, output)
	}
	if err != nil {
		return outcomeDone, err
	}

	e.l.Info("restored", zap.String("path", path), zap.String("output", output))
	return outcomeDone, nil
}

func (e *Engine) restoreLink(entry catalog.Entry, output string) error {
	if fi, err := os.Lstat(output); err == nil && !fi.IsDir() {
		if err = os.Remove(output); err != nil {
			return err
		}
	}
	if err := os.Symlink(entry.LinkTarget, output); err != nil {
		return err
	}

	tv := unix.NsecToTimeval(entry.ModifiedAt.UnixNano())
	if err := unix.Lutimes(output, []unix.Timeval{tv, tv}); err != nil {
		e.l.Debug("cannot set link times", zap.String("path", output), zap.Error(err))
	}
	return nil
}

func (e *Engine) restoreFile(ctx context.Context, entry catalog.Entry, output string) (err error) {
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
		if err != nil {
			_ = os.Remove(output)
			return
		}
		err = os.Chtimes(output, entry.ModifiedAt, entry.ModifiedAt)
	}()

	if !entry.IsChunked() {
		data, err := e.fetch(ctx, entry.ContentChecksum)
		if err != nil {
			return err
		}
		_, err = f.Write(data)
		return err
	}

	for i, sum := range entry.ChunkChecksums {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := e.fetch(ctx, sum)
		if err != nil {
			if errors.Is(err, storagestatus.ErrNotExists) {
				return status.ErrChunkNotFound.Wrap(fmt.Errorf("chunk %d of %q: %w", i, entry.Path, err))
			}
			return err
		}
		if _, err = f.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// fetch retrieves and decodes the content stored under a checksum, then verifies it
func (e *Engine) fetch(ctx context.Context, sum string) ([]byte, error) {
	token, err := storage.ReadAll(ctx, e.store, sum)
	if err != nil {
		return nil, err
	}
	data, err := e.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	if actual := cafs.Sum(data).String(); actual != sum {
		return nil, status.ErrChecksumMismatch.WrapMessage(fmt.Sprintf("expected %s, got %s", sum, actual))
	}
	return data, nil
}
