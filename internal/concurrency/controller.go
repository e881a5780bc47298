// Package concurrency implements the Concurrency Controller (C8): a
// counting semaphore bounding simultaneous indexing jobs plus two active-sets
// that reject duplicate work on the same session id or repository path.
package concurrency

import (
	"context"
	"path/filepath"
	"sync"

	"codewiki/internal/corerr"
)

// Task is the unit of work started under a permit. It receives a context
// that is cancelled if Cancel(id) is called while the task is running.
type Task func(ctx context.Context)

type entry struct {
	path   string
	cancel context.CancelFunc
}

// Controller bounds peak concurrent indexing jobs and tracks which session
// id and which normalized repository path are currently being indexed
// (spec §4.4).
type Controller struct {
	sem          chan struct{}
	mu           sync.Mutex
	activeByID   map[string]entry
	activeByPath map[string]string
}

func New(maxConcurrency int) *Controller {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Controller{
		sem:          make(chan struct{}, maxConcurrency),
		activeByID:   make(map[string]entry),
		activeByPath: make(map[string]string),
	}
}

// NormalizePath canonicalizes a path for duplicate-repository detection:
// resolve symlinks when possible, otherwise fall back to an absolute path
// joined against the working directory (spec §4.4 "Path normalization").
func NormalizePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// Start registers id and the normalized path as active and spawns task in a
// new goroutine, returning Conflict if either is already in use (spec §4.4
// "start(id, path, task)").
func (c *Controller) Start(ctx context.Context, id, path string, task Task) error {
	normalized := NormalizePath(path)

	c.mu.Lock()
	if _, busy := c.activeByID[id]; busy {
		c.mu.Unlock()
		return corerr.Conflict("session already indexing")
	}
	if other, busy := c.activeByPath[normalized]; busy {
		c.mu.Unlock()
		return corerr.Conflict("repository already indexed by %s", other)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	c.activeByID[id] = entry{path: normalized, cancel: cancel}
	c.activeByPath[normalized] = id
	c.mu.Unlock()

	go func() {
		defer c.release(id, normalized)
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-taskCtx.Done():
			return
		}
		task(taskCtx)
	}()

	return nil
}

func (c *Controller) release(id, normalizedPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.activeByID, id)
	if c.activeByPath[normalizedPath] == id {
		delete(c.activeByPath, normalizedPath)
	}
}

// Cancel aborts the task registered under id, if any, and clears both maps.
func (c *Controller) Cancel(id string) {
	c.mu.Lock()
	e, ok := c.activeByID[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.cancel()
	c.release(id, e.path)
}

func (c *Controller) IsIndexing(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.activeByID[id]
	return ok
}

func (c *Controller) IsRepositoryIndexing(path string) bool {
	normalized := NormalizePath(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.activeByPath[normalized]
	return ok
}
