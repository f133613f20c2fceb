// Package task defines the task data model shared by the API client,
// the cache, and the presentation layer.
package task

import (
	"fmt"
	"strings"
	"time"
)

// Priority levels accepted by the server.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Tag is a user-scoped label attached to tasks.
type Tag struct {
	ID     int    `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Task is one todo item as the server returns it. The server assigns
// ID and both timestamps; the client never fabricates them.
type Task struct {
	ID          int       `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Tags        []Tag     `json:"tags"`
}

// CreateInput is the payload for creating a task.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	TagIDs      []int  `json:"tag_ids,omitempty"`
}

// Validate checks the fields the server would reject anyway, so the
// obvious cases fail before a round trip.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is empty")
	}
	if in.Priority != "" {
		if _, err := ParsePriority(in.Priority); err != nil {
			return err
		}
	}
	return nil
}

// Patch is a partial update. Nil fields are absent from the request
// body, so "not sent" and "set to zero value" never collide.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	TagIDs      *[]int  `json:"tag_ids,omitempty"`
}

// IsZero reports whether the patch carries no fields at all.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.Priority == nil && p.TagIDs == nil
}

// ParsePriority normalizes a priority string to one of the accepted
// levels.
func ParsePriority(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	default:
		return "", fmt.Errorf("invalid priority %q (want high, medium or low)", s)
	}
}

// ListFilter narrows a list request. Zero values mean "no filter";
// Completed uses a pointer because false is a real filter value.
type ListFilter struct {
	Completed *bool
	Priority  string
	TagID     int
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PerPage   int
}

// Page is one page of list results plus pagination metadata.
type Page struct {
	Tasks   []Task `json:"tasks"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}
