package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

// Memory is an in-process store with the same contract as Storage. It backs
// local development mode and the test suites; tasks keep insertion order so
// store order matches the hosted table's RowKey order.
type Memory struct {
	mu     sync.Mutex
	tasks  []domain.Task
	events []domain.Event
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func cloneTask(t domain.Task) domain.Task {
	out := t
	if t.Notes != nil {
		out.Notes = append([]domain.Note(nil), t.Notes...)
	}
	if t.Priority != nil {
		p := *t.Priority
		out.Priority = &p
	}
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		out.CompletedAt = &done
	}
	return out
}

// Get retrieves a task by id, returning nil when the id is unknown.
func (m *Memory) Get(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			out := cloneTask(t)
			return &out, nil
		}
	}
	return nil, nil
}

// List retrieves tasks in insertion order, optionally filtered by project
// (case-insensitive) and status.
func (m *Memory) List(ctx context.Context, project string, status domain.Status) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	projectKey := strings.ToLower(project)
	out := []domain.Task{}
	for _, t := range m.tasks {
		if project != "" && t.ProjectKey() != projectKey {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, cloneTask(t))
	}
	return out, nil
}

// Insert adds a new task.
func (m *Memory) Insert(ctx context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tasks {
		if existing.ID == t.ID {
			return fmt.Errorf("task %s already exists", t.ID)
		}
	}
	m.tasks = append(m.tasks, cloneTask(t))
	return nil
}

// Update replaces the stored task.
func (m *Memory) Update(ctx context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == t.ID {
			m.tasks[i] = cloneTask(t)
			return nil
		}
	}
	return fmt.Errorf("task %s not found", t.ID)
}

// Delete removes a task. Deleting an unknown id is not an error.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

// Append records an audit event.
func (m *Memory) Append(ctx context.Context, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded audit events.
func (m *Memory) Events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, len(m.events))
	copy(out, m.events)
	return out
}
