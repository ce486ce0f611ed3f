// Copyright © 2018 One Concern

// Package crawler discovers and describes the files of a directory tree.
package crawler

import (
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
)

const (
	// DefaultListWorkers is the number of directories listed concurrently during a walk
	DefaultListWorkers = 20

	// DefaultStatWorkers is the number of files described concurrently by StatAll
	DefaultStatWorkers = 100

	// DefaultStatWindow is the maximum number of pending descriptions held by StatAll
	DefaultStatWindow = 1000

	// DefaultNameCacheSize is the capacity of the owner and group name caches
	DefaultNameCacheSize = 1024
)

// Crawler walks directory trees
type Crawler struct {
	l             *zap.Logger
	listWorkers   int
	statWorkers   int
	statWindow    int
	nameCacheSize int

	users  *lru.Cache
	groups *lru.Cache
}

// Option for the crawler
type Option func(*Crawler)

// Logger for the crawler
func Logger(l *zap.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.l = l
		}
	}
}

// ListWorkers sets the number of concurrent directory listings
func ListWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.listWorkers = n
		}
	}
}

// StatWorkers sets the number of concurrent file descriptions
func StatWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.statWorkers = n
		}
	}
}

// StatWindow caps the number of pending file descriptions
func StatWindow(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.statWindow = n
		}
	}
}

// NameCacheSize sets the capacity of the owner and group name caches
func NameCacheSize(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.nameCacheSize = n
		}
	}
}

// New crawler
func New(opts ...Option) *Crawler {
	c := &Crawler{
		l:             zap.NewNop(),
		listWorkers:   DefaultListWorkers,
		statWorkers:   DefaultStatWorkers,
		statWindow:    DefaultStatWindow,
		nameCacheSize: DefaultNameCacheSize,
	}
	for _, apply := range opts {
		apply(c)
	}
	// lru.New only fails on a non-positive size
	c.users, _ = lru.New(c.nameCacheSize)
	c.groups, _ = lru.New(c.nameCacheSize)
	return c
}

// ListDirectory lists the immediate children of a directory, sorted by name.
//
// Regular files and symbolic links are returned as files. A symbolic link to a
// directory is returned both as a file and as a directory. Other kinds of entries
// are skipped. Listing failures are logged and yield empty results.
func (c *Crawler) ListDirectory(path string) (dirs, files []string) {
	dirents, err := godirwalk.ReadDirents(path, nil)
	if err != nil {
		c.l.Warn("cannot list directory", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	sort.Sort(dirents)

	for _, de := range dirents {
		child := filepath.Join(path, de.Name())
		switch {
		case de.IsDir():
			dirs = append(dirs, child)
		case de.IsRegular():
			files = append(files, child)
		case de.IsSymlink():
			files = append(files, child)
			if fi, err := os.Stat(child); err == nil && fi.IsDir() {
				dirs = append(dirs, child)
			}
		default:
			c.l.Debug("skipping special file", zap.String("path", child), zap.Stringer("type", de.ModeType()))
		}
	}
	return dirs, files
}
