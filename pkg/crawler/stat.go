// Copyright © 2018 One Concern

package crawler

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/oneconcern/coldstore/pkg/cafs"
	"golang.org/x/sys/unix"
)

// Metadata describes a file found by the crawler
type Metadata struct {
	Path        string      `json:"path"`
	Size        int64       `json:"size"`
	Mode        os.FileMode `json:"mode"`
	Permissions string      `json:"permissions"`
	UID         uint32      `json:"uid"`
	GID         uint32      `json:"gid"`
	Owner       string      `json:"owner"`
	Group       string      `json:"group"`
	AccessedAt  time.Time   `json:"accessed_at"`
	ModifiedAt  time.Time   `json:"modified_at"`
	ChangedAt   time.Time   `json:"changed_at"`
	LinkTarget  string      `json:"link_target,omitempty"`
	Checksum    string      `json:"checksum,omitempty"`
}

// IsLink tells if the file is a symbolic link
func (m Metadata) IsLink() bool {
	return m.Mode&os.ModeSymlink != 0
}

// IsRegular tells if the file is a regular file
func (m Metadata) IsRegular() bool {
	return m.Mode.IsRegular()
}

// StatAndHash describes a file without following symbolic links.
//
// Regular files are hashed with SHA-512. Symbolic links report their target instead.
func (c *Crawler) StatAndHash(path string) (Metadata, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Metadata{}, &os.PathError{Op: "lstat", Path: path, Err: err}
	}

	mode := fileMode(uint32(st.Mode)) //nolint:unconvert
	m := Metadata{
		Path:        path,
		Size:        st.Size,
		Mode:        mode,
		Permissions: strconv.FormatUint(uint64(mode.Perm()), 8),
		UID:         st.Uid,
		GID:         st.Gid,
		Owner:       c.ownerName(st.Uid),
		Group:       c.groupName(st.Gid),
		AccessedAt:  timespec(st.Atim),
		ModifiedAt:  timespec(st.Mtim),
		ChangedAt:   timespec(st.Ctim),
	}

	switch {
	case m.IsLink():
		target, err := os.Readlink(path)
		if err != nil {
			return Metadata{}, err
		}
		m.LinkTarget = target
	case m.IsRegular():
		key, _, err := cafs.HashFile(path)
		if err != nil {
			return Metadata{}, fmt.Errorf("hashing %q: %w", path, err)
		}
		m.Checksum = key.String()
	}
	return m, nil
}

func timespec(ts unix.Timespec) time.Time {
	return time.Unix(ts.Unix()).UTC()
}

func fileMode(raw uint32) os.FileMode {
	mode := os.FileMode(raw & 0o777)
	switch raw & unix.S_IFMT {
	case unix.S_IFDIR:
		mode |= os.ModeDir
	case unix.S_IFLNK:
		mode |= os.ModeSymlink
	case unix.S_IFIFO:
		mode |= os.ModeNamedPipe
	case unix.S_IFSOCK:
		mode |= os.ModeSocket
	case unix.S_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFBLK:
		mode |= os.ModeDevice
	}
	if raw&unix.S_ISUID != 0 {
		mode |= os.ModeSetuid
	}
	if raw&unix.S_ISGID != 0 {
		mode |= os.ModeSetgid
	}
	if raw&unix.S_ISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

func (c *Crawler) ownerName(uid uint32) string {
	if name, ok := c.users.Get(uid); ok {
		return name.(string)
	}
	name := strconv.FormatUint(uint64(uid), 10)
	if u, err := user.LookupId(name); err == nil {
		name = u.Username
	}
	c.users.Add(uid, name)
	return name
}

func (c *Crawler) groupName(gid uint32) string {
	if name, ok := c.groups.Get(gid); ok {
		return name.(string)
	}
	name := strconv.FormatUint(uint64(gid), 10)
	if g, err := user.LookupGroupId(name); err == nil {
		name = g.Name
	}
	c.groups.Add(gid, name)
	return name
}
