// Copyright © 2018 One Concern

package crawler

import (
	"context"
	"iter"
	"sync"

	"go.uber.org/zap"
)

// statTask is the handle of one pending file description
type statTask struct {
	path string
	done chan struct{}
	meta Metadata
	err  error
}

func newStatTask(path string) *statTask {
	return &statTask{path: path, done: make(chan struct{})}
}

func (t *statTask) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// pendingQueue holds task handles in submission order
type pendingQueue struct {
	tasks []*statTask
	head  int
}

func (q *pendingQueue) push(t *statTask) {
	q.tasks = append(q.tasks, t)
}

func (q *pendingQueue) front() *statTask {
	return q.tasks[q.head]
}

func (q *pendingQueue) pop() *statTask {
	t := q.tasks[q.head]
	q.tasks[q.head] = nil
	q.head++
	if q.head == len(q.tasks) {
		q.tasks, q.head = q.tasks[:0], 0
	}
	return t
}

func (q *pendingQueue) len() int {
	return len(q.tasks) - q.head
}

// StatAll describes all the files found under root.
//
// Files are described concurrently, and yielded in the order they are discovered.
// At most StatWindow descriptions are pending at any time: when the window is full,
// the oldest pending description is awaited before more work is submitted.
// Files which cannot be described are logged and skipped.
func (c *Crawler) StatAll(ctx context.Context, root string) iter.Seq[Metadata] {
	return func(yield func(Metadata) bool) {
		ctx, cancel := context.WithCancel(ctx)
		tasks := make(chan *statTask, c.statWindow)

		var wg sync.WaitGroup
		for i := 0; i < c.statWorkers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for t := range tasks {
					c.runStatTask(ctx, t)
				}
			}()
		}
		defer func() {
			cancel()
			close(tasks)
			wg.Wait()
		}()

		var pending pendingQueue
		for path := range c.Walk(ctx, root) {
			t := newStatTask(path)
			tasks <- t
			pending.push(t)

			if pending.len() < c.statWindow {
				continue
			}
			if !c.emit(ctx, pending.pop(), yield) {
				return
			}
			for pending.len() > 0 && pending.front().finished() {
				if !c.emit(ctx, pending.pop(), yield) {
					return
				}
			}
		}

		for pending.len() > 0 {
			if !c.emit(ctx, pending.pop(), yield) {
				return
			}
		}
	}
}

func (c *Crawler) runStatTask(ctx context.Context, t *statTask) {
	defer close(t.done)
	if err := ctx.Err(); err != nil {
		t.err = err
		return
	}
	t.meta, t.err = c.StatAndHash(t.path)
}

// emit waits for a task, then yields its result. It returns false when the iteration must stop.
func (c *Crawler) emit(ctx context.Context, t *statTask, yield func(Metadata) bool) bool {
	select {
	case <-t.done:
	case <-ctx.Done():
		return false
	}
	if t.err != nil {
		c.l.Error("cannot describe file", zap.String("path", t.path), zap.Error(t.err))
		return true
	}
	return yield(t.meta)
}
