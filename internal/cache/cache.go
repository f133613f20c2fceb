// Package cache owns the client-side copy of the signed-in user's
// tasks. It is the single writer of task state: every operation goes
// through the remote service and only a confirmed response mutates
// the cached sequence.
package cache

import (
	"context"
	"fmt"
	"sync"

	"taskflow/internal/task"
)

// TaskService is the remote backend the cache talks to. api.Client
// implements it; tests substitute an in-memory fake.
type TaskService interface {
	List(ctx context.Context, filter task.ListFilter) (task.Page, error)
	Create(ctx context.Context, input task.CreateInput) (task.Task, error)
	Update(ctx context.Context, id int, patch task.Patch) (task.Task, error)
	ToggleComplete(ctx context.Context, id int) (task.Task, error)
	Delete(ctx context.Context, id int) error
}

// Cache holds the task sequence plus the loading/error state the
// presentation layer renders. It is constructed on session start and
// discarded on sign-out; nothing else holds task state.
type Cache struct {
	svc TaskService

	mu      sync.Mutex
	tasks   []task.Task
	loading bool
	lastErr string

	onChange func()
}

func New(svc TaskService) *Cache {
	return &Cache{svc: svc}
}

// SetOnChange registers a callback invoked after every state change
// (loading transitions included) so the presentation layer can
// re-render. Called without the cache lock held.
func (c *Cache) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Tasks returns a copy of the cached sequence.
func (c *Cache) Tasks() []task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]task.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Loading reports whether an operation is in flight.
func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the message from the last failed operation, or "".
func (c *Cache) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Fetch replaces the entire cached sequence with the server's result
// for the filter. On failure the cache keeps its last-known-good
// contents and the error is both recorded and returned.
func (c *Cache) Fetch(ctx context.Context, filter task.ListFilter) (page task.Page, err error) {
	c.begin()
	defer func() { c.finish("fetch tasks", err) }()

	page, err = c.svc.List(ctx, filter)
	if err != nil {
		return task.Page{}, err
	}

	c.mu.Lock()
	c.tasks = append([]task.Task(nil), page.Tasks...)
	c.mu.Unlock()
	return page, nil
}

// Create creates the task server-side and prepends the confirmed
// record. No re-fetch is needed; the server response is complete.
func (c *Cache) Create(ctx context.Context, input task.CreateInput) (created task.Task, err error) {
	c.begin()
	defer func() { c.finish("create task", err) }()

	created, err = c.svc.Create(ctx, input)
	if err != nil {
		return task.Task{}, err
	}

	c.mu.Lock()
	c.tasks = append([]task.Task{created}, c.tasks...)
	c.mu.Unlock()
	return created, nil
}

// Update applies a partial update and replaces the matching cached
// entry in place. If the entry is gone locally (raced with a delete
// or a re-fetch) the result is dropped; that race is benign.
func (c *Cache) Update(ctx context.Context, id int, patch task.Patch) (updated task.Task, err error) {
	c.begin()
	defer func() { c.finish("update task", err) }()

	updated, err = c.svc.Update(ctx, id, patch)
	if err != nil {
		return task.Task{}, err
	}

	c.replace(updated)
	return updated, nil
}

// Toggle flips the completion flag server-side and replaces the
// cached entry with the confirmed record.
func (c *Cache) Toggle(ctx context.Context, id int) (updated task.Task, err error) {
	c.begin()
	defer func() { c.finish("toggle task", err) }()

	updated, err = c.svc.ToggleComplete(ctx, id)
	if err != nil {
		return task.Task{}, err
	}

	c.replace(updated)
	return updated, nil
}

// Delete removes the task server-side and evicts the cached entry on
// confirmation. On failure the entry stays.
func (c *Cache) Delete(ctx context.Context, id int) (err error) {
	c.begin()
	defer func() { c.finish("delete task", err) }()

	if err = c.svc.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	kept := c.tasks[:0]
	for _, t := range c.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	c.tasks = kept
	c.mu.Unlock()
	return nil
}

func (c *Cache) replace(updated task.Task) {
	c.mu.Lock()
	for i := range c.tasks {
		if c.tasks[i].ID == updated.ID {
			c.tasks[i] = updated
			break
		}
	}
	c.mu.Unlock()
}

func (c *Cache) begin() {
	c.mu.Lock()
	c.loading = true
	c.lastErr = ""
	c.mu.Unlock()
	c.notify()
}

// finish clears the loading flag no matter how the operation ended,
// records the failure message if any, and notifies the listener.
func (c *Cache) finish(op string, err error) {
	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.lastErr = fmt.Sprintf("failed to %s: %v", op, err)
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Cache) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
