// Package testutil provides in-memory fakes for the remote service
// and the agent endpoint.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskflow/internal/api"
	"taskflow/internal/chat"
	"taskflow/internal/task"
)

// FakeTaskService is an in-memory cache.TaskService with per-call
// error injection.
type FakeTaskService struct {
	mu     sync.Mutex
	nextID int
	tasks  []task.Task
	userID string

	// Error injection for testing
	ListErr   error
	CreateErr error
	UpdateErr error
	ToggleErr error
	DeleteErr error

	// Call counts
	ListCalls   int
	CreateCalls int
	DeleteCalls int
}

func NewFakeTaskService(userID string) *FakeTaskService {
	return &FakeTaskService{nextID: 1, userID: userID}
}

// Seed inserts a task directly, bypassing the service contract, the
// way an agent-side mutation would.
func (f *FakeTaskService) Seed(title, priority string, completed bool) task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(task.CreateInput{Title: title, Priority: priority}, completed)
}

func (f *FakeTaskService) insertLocked(input task.CreateInput, completed bool) task.Task {
	now := time.Now()
	t := task.Task{
		ID:          f.nextID,
		UserID:      f.userID,
		Title:       input.Title,
		Description: input.Description,
		Completed:   completed,
		Priority:    input.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.nextID++
	// Server lists newest first.
	f.tasks = append([]task.Task{t}, f.tasks...)
	return t
}

// List implements cache.TaskService.
func (f *FakeTaskService) List(ctx context.Context, filter task.ListFilter) (task.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return task.Page{}, f.ListErr
	}

	var out []task.Task
	for _, t := range f.tasks {
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		out = append(out, t)
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	return task.Page{Tasks: out, Total: len(out), Page: page, PerPage: 20}, nil
}

// Create implements cache.TaskService.
func (f *FakeTaskService) Create(ctx context.Context, input task.CreateInput) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.CreateErr != nil {
		return task.Task{}, f.CreateErr
	}
	if err := input.Validate(); err != nil {
		return task.Task{}, &api.Error{Kind: api.KindValidation, Detail: err.Error()}
	}
	if input.Priority == "" {
		input.Priority = task.PriorityMedium
	}
	return f.insertLocked(input, false), nil
}

// Update implements cache.TaskService.
func (f *FakeTaskService) Update(ctx context.Context, id int, patch task.Patch) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return task.Task{}, f.UpdateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if patch.Title != nil {
			f.tasks[i].Title = *patch.Title
		}
		if patch.Description != nil {
			f.tasks[i].Description = *patch.Description
		}
		if patch.Completed != nil {
			f.tasks[i].Completed = *patch.Completed
		}
		if patch.Priority != nil {
			f.tasks[i].Priority = *patch.Priority
		}
		f.tasks[i].UpdatedAt = time.Now()
		return f.tasks[i], nil
	}
	return task.Task{}, &api.Error{Kind: api.KindNotFound, Status: 404, Detail: "Task not found"}
}

// ToggleComplete implements cache.TaskService.
func (f *FakeTaskService) ToggleComplete(ctx context.Context, id int) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ToggleErr != nil {
		return task.Task{}, f.ToggleErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		f.tasks[i].Completed = !f.tasks[i].Completed
		f.tasks[i].UpdatedAt = time.Now()
		return f.tasks[i], nil
	}
	return task.Task{}, &api.Error{Kind: api.KindNotFound, Status: 404, Detail: "Task not found"}
}

// Delete implements cache.TaskService.
func (f *FakeTaskService) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return &api.Error{Kind: api.KindNotFound, Status: 404, Detail: "Task not found"}
}

// ScriptedSender is a chat.Sender that replays queued responses.
type ScriptedSender struct {
	mu        sync.Mutex
	Responses []chat.SendResponse
	Errs      []error
	Requests  []chat.SendRequest
}

// Queue adds a successful response.
func (s *ScriptedSender) Queue(resp chat.SendResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, resp)
	s.Errs = append(s.Errs, nil)
}

// QueueErr adds a failed exchange.
func (s *ScriptedSender) QueueErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, chat.SendResponse{})
	s.Errs = append(s.Errs, err)
}

// Send implements chat.Sender.
func (s *ScriptedSender) Send(ctx context.Context, userID string, req chat.SendRequest) (chat.SendResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.Requests)
	s.Requests = append(s.Requests, req)
	if idx >= len(s.Responses) {
		return chat.SendResponse{}, errors.New("no scripted response left")
	}
	return s.Responses[idx], s.Errs[idx]
}
