// Copyright © 2018 One Concern

package crawler

import (
	"context"
	"iter"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// inode identifies a directory on a device
type inode struct {
	dev uint64
	ino uint64
}

// dirNode is a directory to list, together with the inodes of the directories above it
// and of itself. A subdirectory whose inode is already in that chain closes a symbolic
// link cycle.
type dirNode struct {
	path      string
	ancestors []inode
}

type listing struct {
	parent dirNode
	dirs   []string
	files  []string
}

// Walk lazily yields the files found under root, breadth first.
//
// Each round lists all directories of the current frontier concurrently. Files are
// yielded as soon as their listing completes, and subdirectories make up the next
// frontier. A symbolic link to a directory is yielded as a file and walked again as a
// directory, unless it points back to one of its own ancestors.
//
// The walk ends when the frontier is empty, when the consumer stops or when the
// context is cancelled. No goroutine survives the iteration.
func (c *Crawler) Walk(ctx context.Context, root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		frontier := []dirNode{c.child(dirNode{}, root)}

		for len(frontier) > 0 {
			if ctx.Err() != nil {
				return
			}
			next, ok := c.walkRound(ctx, frontier, yield)
			if !ok {
				return
			}
			frontier = next
		}
	}
}

func (c *Crawler) walkRound(ctx context.Context, frontier []dirNode, yield func(string) bool) ([]dirNode, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan listing, len(frontier))
	go func() {
		var g errgroup.Group
		g.SetLimit(c.listWorkers)
		for _, node := range frontier {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				dirs, files := c.ListDirectory(node.path)
				results <- listing{parent: node, dirs: dirs, files: files}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()
	defer func() {
		for range results {
		}
	}()

	var next []dirNode
	for result := range results {
		for _, file := range result.files {
			if ctx.Err() != nil || !yield(file) {
				cancel()
				return nil, false
			}
		}
		for _, dir := range result.dirs {
			node := c.child(result.parent, dir)
			if node.path == "" {
				continue
			}
			next = append(next, node)
		}
	}
	return next, ctx.Err() == nil
}

// child builds the frontier entry for dir listed under parent. It returns an empty
// node when dir is one of parent's ancestors.
func (c *Crawler) child(parent dirNode, dir string) dirNode {
	var st unix.Stat_t
	if err := unix.Stat(dir, &st); err != nil {
		return dirNode{path: dir, ancestors: parent.ancestors}
	}

	id := inode{dev: uint64(st.Dev), ino: st.Ino} //nolint:unconvert
	if slices.Contains(parent.ancestors, id) {
		c.l.Debug("symbolic link cycle", zap.String("path", dir))
		return dirNode{}
	}

	chain := make([]inode, len(parent.ancestors), len(parent.ancestors)+1)
	copy(chain, parent.ancestors)
	return dirNode{path: dir, ancestors: append(chain, id)}
}
