// Package taskclient is a Go client for the task API: a REST client, a live
// subscription to task events and the cache both of them keep up to date.
package taskclient

import (
	"slices"
	"sync"

	"github.com/Tomlord1122/task-backend/internal/realtime"
	"github.com/Tomlord1122/task-backend/internal/service"
)

// State is a point-in-time copy of the cache.
type State struct {
	Tasks    []service.TaskResponse
	Loading  bool
	Error    string
	Selected *service.TaskResponse
}

// Cache holds the client's view of the current user's tasks, newest first.
// REST results and broadcast events are applied in arrival order; the last
// one to arrive wins.
type Cache struct {
	mu       sync.RWMutex
	tasks    []service.TaskResponse
	loading  bool
	err      string
	selected *service.TaskResponse
}

func NewCache() *Cache {
	return &Cache{}
}

// Snapshot returns a copy of the current state.
func (c *Cache) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := State{
		Tasks:   slices.Clone(c.tasks),
		Loading: c.loading,
		Error:   c.err,
	}
	if c.selected != nil {
		sel := *c.selected
		s.Selected = &sel
	}
	return s
}

// Pending marks a request in flight and clears the last error.
func (c *Cache) Pending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true
	c.err = ""
}

// Reject records a failed request.
func (c *Cache) Reject(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.err = err.Error()
	}
}

// FetchedAll replaces the list with a fresh listing.
func (c *Cache) FetchedAll(tasks []service.TaskResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.tasks = slices.Clone(tasks)
}

// Created prepends task, or replaces it when a broadcast already added it.
func (c *Cache) Created(task service.TaskResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if !c.replace(task) {
		c.tasks = slices.Insert(c.tasks, 0, task)
	}
}

// Updated replaces the task with the same id, including the selection.
func (c *Cache) Updated(task service.TaskResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.replace(task)
	if c.selected != nil && c.selected.ID == task.ID {
		sel := task
		c.selected = &sel
	}
}

// Deleted removes the task with id and clears it from the selection.
func (c *Cache) Deleted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.remove(id)
	if c.selected != nil && c.selected.ID == id {
		c.selected = nil
	}
}

// Fetched records a single fetched task as the selection.
func (c *Cache) Fetched(task service.TaskResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.selected = &task
}

func (c *Cache) Select(task *service.TaskResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if task == nil {
		c.selected = nil
		return
	}
	sel := *task
	c.selected = &sel
}

func (c *Cache) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = ""
}

// Clear resets the cache, e.g. on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = nil
	c.loading = false
	c.err = ""
	c.selected = nil
}

// Apply merges a broadcast event: created tasks are prepended when absent,
// updates and deletions only touch tasks already present. The selection is
// left alone.
func (c *Cache) Apply(ev realtime.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Event {
	case realtime.EventTaskCreated:
		if ev.Data.Task != nil && c.index(ev.Data.Task.ID) < 0 {
			c.tasks = slices.Insert(c.tasks, 0, *ev.Data.Task)
		}
	case realtime.EventTaskUpdated:
		if ev.Data.Task != nil {
			c.replace(*ev.Data.Task)
		}
	case realtime.EventTaskDeleted:
		c.remove(ev.Data.TaskID)
	}
}

func (c *Cache) index(id string) int {
	return slices.IndexFunc(c.tasks, func(t service.TaskResponse) bool { return t.ID == id })
}

func (c *Cache) replace(task service.TaskResponse) bool {
	i := c.index(task.ID)
	if i < 0 {
		return false
	}
	c.tasks[i] = task
	return true
}

func (c *Cache) remove(id string) {
	if i := c.index(id); i >= 0 {
		c.tasks = slices.Delete(c.tasks, i, i+1)
	}
}
