package storage

import (
	"context"
	"testing"
	"time"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

func memTask(id, title, project string, status domain.Status) domain.Task {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.Task{ID: id, Title: title, Project: project, Status: status, CreatedAt: now, UpdatedAt: now}
}

func TestMemoryInsertAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Insert(ctx, memTask("t1", "write code", "app", domain.StatusPlanned)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := m.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Title != "write code" {
		t.Fatalf("unexpected task %+v", got)
	}

	missing, err := m.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id, got %+v", missing)
	}

	if err := m.Insert(ctx, memTask("t1", "dup", "app", domain.StatusPlanned)); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Insert(ctx, memTask("t1", "a", "App", domain.StatusPlanned))
	_ = m.Insert(ctx, memTask("t2", "b", "ops", domain.StatusActive))
	_ = m.Insert(ctx, memTask("t3", "c", "app", domain.StatusActive))

	all, err := m.List(ctx, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "t1" || all[2].ID != "t3" {
		t.Fatalf("expected insertion order, got %+v", all)
	}

	app, _ := m.List(ctx, "APP", "")
	if len(app) != 2 {
		t.Fatalf("expected case-insensitive project filter, got %+v", app)
	}

	active, _ := m.List(ctx, "", domain.StatusActive)
	if len(active) != 2 || active[0].ID != "t2" {
		t.Fatalf("unexpected status filter result %+v", active)
	}

	both, _ := m.List(ctx, "app", domain.StatusActive)
	if len(both) != 1 || both[0].ID != "t3" {
		t.Fatalf("unexpected combined filter result %+v", both)
	}
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	task := memTask("t1", "write code", "app", domain.StatusPlanned)
	_ = m.Insert(ctx, task)

	task.Transition(domain.StatusDone, "", time.Now())
	if err := m.Update(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := m.Get(ctx, "t1")
	if got.Status != domain.StatusDone || got.CompletedAt == nil {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := m.Update(ctx, memTask("nope", "x", "app", domain.StatusPlanned)); err == nil {
		t.Fatal("expected update of unknown id to fail")
	}

	if err := m.Delete(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := m.Get(ctx, "t1"); got != nil {
		t.Fatalf("expected task gone, got %+v", got)
	}
	if err := m.Delete(ctx, "t1"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	task := memTask("t1", "write code", "app", domain.StatusPlanned)
	task.AppendNote("first", time.Now())
	_ = m.Insert(ctx, task)

	got, _ := m.Get(ctx, "t1")
	got.Notes[0].Text = "mutated"
	got.Title = "mutated"

	again, _ := m.Get(ctx, "t1")
	if again.Title != "write code" || again.Notes[0].Text != "first" {
		t.Fatalf("stored task was mutated through a returned copy: %+v", again)
	}
}

func TestMemoryAppendEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Append(ctx, domain.Event{ID: "e1", Op: "add"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.Append(ctx, domain.Event{ID: "e2", Op: "done"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	events := m.Events()
	if len(events) != 2 || events[0].ID != "e1" || events[1].Op != "done" {
		t.Fatalf("unexpected events %+v", events)
	}
}
