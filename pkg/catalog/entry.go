// Copyright © 2018 One Concern

package catalog

import (
	"fmt"
	"time"

	"github.com/oneconcern/coldstore/pkg/cafs"
	"github.com/oneconcern/coldstore/pkg/catalog/status"
)

// Kind of archived entry
type Kind string

const (
	// KindFile is a regular file, stored whole or in chunks
	KindFile Kind = "file"

	// KindLink is a symbolic link. Only its target is recorded.
	KindLink Kind = "link"
)

// TimeLayout renders modification times with microsecond precision, in UTC
const TimeLayout = "2006-01-02T15:04:05.000000"

// Entry describes one archived path.
//
// Files small enough to be stored whole carry a ContentChecksum. Larger files
// carry the ordered checksums of their chunks instead.
type Entry struct {
	Path            string
	Kind            Kind
	Size            uint64
	ModifiedAt      time.Time
	LinkTarget      string
	ContentChecksum string
	ChunkChecksums  []string
}

// IsChunked tells if the content of a file is stored in chunks
func (e Entry) IsChunked() bool {
	return len(e.ChunkChecksums) > 0
}

// normalize returns a copy of the entry which does not share memory with the caller
func (e Entry) normalize() Entry {
	e.ModifiedAt = e.ModifiedAt.UTC().Truncate(time.Microsecond)
	if e.ChunkChecksums != nil {
		e.ChunkChecksums = append([]string(nil), e.ChunkChecksums...)
	}
	return e
}

func (e Entry) validate() error {
	if e.Path == "" {
		return status.ErrInvalidEntry.WrapMessage("empty path")
	}

	switch e.Kind {
	case KindLink:
		if e.LinkTarget == "" {
			return status.ErrInvalidEntry.WrapMessage(fmt.Sprintf("link %q has no target", e.Path))
		}
		if e.ContentChecksum != "" || len(e.ChunkChecksums) > 0 {
			return status.ErrInvalidEntry.WrapMessage(fmt.Sprintf("link %q has content", e.Path))
		}
	case KindFile:
		if (e.ContentChecksum == "") == (len(e.ChunkChecksums) == 0) {
			return status.ErrInvalidEntry.WrapMessage(
				fmt.Sprintf("file %q needs either a content checksum or chunk checksums", e.Path))
		}
		for _, sum := range append([]string{e.ContentChecksum}, e.ChunkChecksums...) {
			if sum == "" {
				continue
			}
			if _, err := cafs.KeyFromString(sum); err != nil {
				return status.ErrInvalidEntry.Wrap(err)
			}
		}
	default:
		return status.ErrInvalidEntry.WrapMessage(fmt.Sprintf("unknown kind %q for %q", e.Kind, e.Path))
	}

	return nil
}

// record is the persisted form of an entry
type record struct {
	Path            string   `json:"path"`
	Size            uint64   `json:"size"`
	Type            Kind     `json:"type"`
	ModifiedAt      string   `json:"modified_at"`
	LinkTarget      string   `json:"link_target"`
	ContentChecksum string   `json:"content_checksum"`
	ChunkChecksums  []string `json:"chunk_checksums"`
}

// document is the persisted form of the catalog
type document struct {
	Version int      `json:"version"`
	Entries []record `json:"entries"`
}

const documentVersion = 1

func toRecord(e Entry) record {
	chunks := e.ChunkChecksums
	if chunks == nil {
		chunks = []string{}
	}
	return record{
		Path:            e.Path,
		Size:            e.Size,
		Type:            e.Kind,
		ModifiedAt:      e.ModifiedAt.UTC().Format(TimeLayout),
		LinkTarget:      e.LinkTarget,
		ContentChecksum: e.ContentChecksum,
		ChunkChecksums:  chunks,
	}
}

func fromRecord(r record) (Entry, error) {
	mtime, err := time.ParseInLocation(TimeLayout, r.ModifiedAt, time.UTC)
	if err != nil {
		return Entry{}, status.ErrInvalidEntry.Wrap(fmt.Errorf("modification time for %q: %w", r.Path, err))
	}
	e := Entry{
		Path:            r.Path,
		Kind:            r.Type,
		Size:            r.Size,
		ModifiedAt:      mtime,
		LinkTarget:      r.LinkTarget,
		ContentChecksum: r.ContentChecksum,
	}
	if len(r.ChunkChecksums) > 0 {
		e.ChunkChecksums = r.ChunkChecksums
	}
	return e, e.validate()
}
