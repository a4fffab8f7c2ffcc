package domain

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPlanned Status = "planned"
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
	StatusDone    Status = "done"
)

// statusRank orders statuses for the board view: work in flight first,
// finished work last.
var statusRank = map[Status]int{
	StatusActive:  0,
	StatusBlocked: 1,
	StatusPlanned: 2,
	StatusDone:    3,
}

// Rank returns the sort position of the status within a project group.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return len(statusRank)
}

// statusAliases maps accepted status literals, including the spellings used
// by older export formats, onto the canonical vocabulary.
var statusAliases = map[string]Status{
	"planned":     StatusPlanned,
	"todo":        StatusPlanned,
	"active":      StatusActive,
	"in_flight":   StatusActive,
	"in-progress": StatusActive,
	"blocked":     StatusBlocked,
	"done":        StatusDone,
	"parked":      StatusDone,
}

// ParseStatus converts a status literal into a Status. Unrecognized literals
// return a StatusError.
func ParseStatus(raw string) (Status, error) {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s, nil
	}
	return "", StatusError{Value: raw}
}

// StatusNames lists the canonical status literals.
func StatusNames() []string {
	return []string{string(StatusPlanned), string(StatusActive), string(StatusBlocked), string(StatusDone)}
}

// Note is an immutable timestamped annotation owned by exactly one task.
type Note struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Task is the unit of work tracked by the gateway.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Project       string     `json:"project"`
	Status        Status     `json:"status"`
	BlockedReason string     `json:"blockedReason,omitempty"`
	Priority      *int       `json:"priority,omitempty"`
	Notes         []Note     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

var lastIDStamp int64

// NewTaskID returns a new task identifier. IDs are derived from a monotonic
// nanosecond clock so lexicographic store order matches creation order.
func NewTaskID(now time.Time) string {
	for {
		ts := now.UnixNano()
		last := atomic.LoadInt64(&lastIDStamp)
		if ts <= last {
			ts = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastIDStamp, last, ts) {
			return strconv.FormatInt(ts, 36)
		}
	}
}

// NewTask creates a task in the initial planned state.
func NewTask(title, project string, now time.Time) Task {
	return Task{
		ID:        NewTaskID(now),
		Title:     strings.TrimSpace(title),
		Project:   strings.TrimSpace(project),
		Status:    StatusPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the task to the given status and re-establishes the
// status invariants: blockedReason is set only while blocked, completedAt
// only while done.
func (t *Task) Transition(s Status, reason string, now time.Time) {
	t.Status = s
	t.BlockedReason = ""
	t.CompletedAt = nil
	switch s {
	case StatusBlocked:
		t.BlockedReason = reason
	case StatusDone:
		done := now
		t.CompletedAt = &done
	}
	t.UpdatedAt = now
}

// AppendNote attaches a note to the task. Notes are append-only.
func (t *Task) AppendNote(text string, now time.Time) {
	t.Notes = append(t.Notes, Note{Text: strings.TrimSpace(text), At: now})
	t.UpdatedAt = now
}

// Rename replaces the task title.
func (t *Task) Rename(title string, now time.Time) {
	t.Title = strings.TrimSpace(title)
	t.UpdatedAt = now
}

// ProjectKey returns the case-insensitive grouping key of the task's project.
func (t *Task) ProjectKey() string {
	return strings.ToLower(t.Project)
}
