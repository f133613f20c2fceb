package cache_test

import (
	"context"
	"errors"
	"testing"

	"taskflow/internal/api"
	"taskflow/internal/cache"
	"taskflow/internal/task"
	"taskflow/internal/testutil"
)

func TestFetchReplacesContents(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	svc.Seed("write report", task.PriorityMedium, false)
	svc.Seed("buy groceries", task.PriorityHigh, false)

	c := cache.New(svc)
	page, err := c.Fetch(context.Background(), task.ListFilter{})
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("unexpected total: %d", page.Total)
	}

	got := c.Tasks()
	if len(got) != 2 {
		t.Fatalf("expected 2 cached tasks, got %d", len(got))
	}
	if got[0].Title != "buy groceries" {
		t.Fatalf("expected newest first, got %q", got[0].Title)
	}
	if c.Loading() {
		t.Fatal("loading flag still set after fetch")
	}
}

func TestFetchEmptyResultYieldsEmptyCache(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	c := cache.New(svc)

	if _, err := c.Fetch(context.Background(), task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if got := c.Tasks(); len(got) != 0 {
		t.Fatalf("expected empty cache, got %d tasks", len(got))
	}
	if c.Err() != "" {
		t.Fatalf("unexpected error state: %q", c.Err())
	}
}

func TestFetchFailureKeepsLastKnownGood(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	svc.Seed("write report", task.PriorityMedium, false)

	c := cache.New(svc)
	if _, err := c.Fetch(context.Background(), task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	svc.ListErr = &api.Error{Kind: api.KindNetwork, Detail: "connection refused"}
	if _, err := c.Fetch(context.Background(), task.ListFilter{}); err == nil {
		t.Fatal("expected fetch error")
	}

	if got := c.Tasks(); len(got) != 1 || got[0].Title != "write report" {
		t.Fatalf("cache lost last-known-good contents: %#v", got)
	}
	if c.Err() == "" {
		t.Fatal("expected recorded error message")
	}
	if c.Loading() {
		t.Fatal("loading flag stuck after failure")
	}
}

func TestCreateAgainstEmptyCache(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	c := cache.New(svc)

	created, err := c.Create(context.Background(), task.CreateInput{
		Title:    "Write report",
		Priority: task.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	got := c.Tasks()
	if len(got) != 1 {
		t.Fatalf("expected cache of length 1, got %d", len(got))
	}
	if got[0].ID != created.ID {
		t.Fatalf("cached entry id mismatch: %d vs %d", got[0].ID, created.ID)
	}
	if got[0].Title != "Write report" || got[0].Priority != task.PriorityMedium || got[0].Completed {
		t.Fatalf("unexpected cached entry: %#v", got[0])
	}
}

func TestCreatePrependsWithoutRefetch(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	svc.Seed("older task", task.PriorityLow, false)

	c := cache.New(svc)
	if _, err := c.Fetch(context.Background(), task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	listCallsBefore := svc.ListCalls

	if _, err := c.Create(context.Background(), task.CreateInput{Title: "newer task"}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	got := c.Tasks()
	if len(got) != 2 || got[0].Title != "newer task" {
		t.Fatalf("expected created task prepended, got %#v", got)
	}
	if svc.ListCalls != listCallsBefore {
		t.Fatal("create must not trigger a re-fetch")
	}
}

func TestCreateFailureLeavesCacheUnchanged(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	c := cache.New(svc)

	_, err := c.Create(context.Background(), task.CreateInput{Title: "   "})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !api.IsValidation(err) {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if len(c.Tasks()) != 0 {
		t.Fatal("failed create must not touch the cache")
	}
}

func TestUpdateReplacesEntryInPlace(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	svc.Seed("first", task.PriorityMedium, false)
	svc.Seed("second", task.PriorityMedium, false)

	c := cache.New(svc)
	if _, err := c.Fetch(context.Background(), task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	before := c.Tasks()
	target := before[1] // "first", listed after "second"

	title := "first, renamed"
	if _, err := c.Update(context.Background(), target.ID, task.Patch{Title: &title}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	after := c.Tasks()
	if after[0].ID != before[0].ID {
		t.Fatal("update moved an unrelated entry")
	}
	if after[1].ID != target.ID || after[1].Title != "first, renamed" {
		t.Fatalf("entry not replaced in place: %#v", after[1])
	}
}

func TestUpdateResultForLocallyMissingIDIsDiscarded(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	svc.Seed("first", task.PriorityMedium, false)

	c := cache.New(svc)
	if _, err := c.Fetch(context.Background(), task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	// A task that exists server-side but was never fetched locally,
	// as after a race with a concurrent fetch.
	other := svc.Seed("created elsewhere", task.PriorityLow, false)

	done := true
	if _, err := c.Update(context.Background(), other.ID, task.Patch{Completed: &done}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	got := c.Tasks()
	if len(got) != 1 || got[0].Title != "first" {
		t.Fatalf("discarded update leaked into the cache: %#v", got)
	}
}

func TestToggleIdempotentAcrossFetch(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	seeded := svc.Seed("flip me", task.PriorityMedium, false)

	c := cache.New(svc)
	ctx := context.Background()
	if _, err := c.Fetch(ctx, task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	first, err := c.Toggle(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("unexpected toggle error: %v", err)
	}
	if !first.Completed {
		t.Fatal("first toggle should complete the task")
	}

	if _, err := c.Fetch(ctx, task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	second, err := c.Toggle(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("unexpected toggle error: %v", err)
	}
	if second.Completed != seeded.Completed {
		t.Fatal("toggle/fetch/toggle did not return to the original value")
	}
	if got := c.Tasks(); got[0].Completed != seeded.Completed {
		t.Fatalf("cache out of sync after double toggle: %#v", got[0])
	}
}

func TestDeleteEvictsEntry(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	keep := svc.Seed("keep", task.PriorityMedium, false)
	drop := svc.Seed("drop", task.PriorityMedium, false)

	c := cache.New(svc)
	ctx := context.Background()
	if _, err := c.Fetch(ctx, task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	if err := c.Delete(ctx, drop.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	got := c.Tasks()
	if len(got) != 1 || got[0].ID != keep.ID {
		t.Fatalf("unexpected cache after delete: %#v", got)
	}
}

func TestFailedDeleteKeepsTask(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	seeded := svc.Seed("still here", task.PriorityMedium, false)

	c := cache.New(svc)
	ctx := context.Background()
	if _, err := c.Fetch(ctx, task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}

	svc.DeleteErr = errors.New("boom")
	if err := c.Delete(ctx, seeded.ID); err == nil {
		t.Fatal("expected delete error")
	}

	got := c.Tasks()
	if len(got) != 1 || got[0].ID != seeded.ID {
		t.Fatalf("targeted task missing after failed delete: %#v", got)
	}
	if c.Err() == "" {
		t.Fatal("expected recorded error message")
	}
	if c.Loading() {
		t.Fatal("loading flag stuck after failed delete")
	}
}

func TestUniqueEntriesAcrossOperations(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	c := cache.New(svc)
	ctx := context.Background()

	created, err := c.Create(ctx, task.CreateInput{Title: "only once"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if _, err := c.Fetch(ctx, task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	title := "renamed"
	if _, err := c.Update(ctx, created.ID, task.Patch{Title: &title}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	seen := map[int]int{}
	for _, item := range c.Tasks() {
		seen[item.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("task %d cached %d times", id, n)
		}
	}
}

func TestOnChangeFiresOnOperations(t *testing.T) {
	svc := testutil.NewFakeTaskService("user-1")
	c := cache.New(svc)

	var notifications int
	c.SetOnChange(func() { notifications++ })

	if _, err := c.Fetch(context.Background(), task.ListFilter{}); err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if notifications == 0 {
		t.Fatal("expected at least one change notification")
	}
}
