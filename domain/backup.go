package domain

import (
	"sort"
	"strings"
	"time"
)

// BackupVersion is the schema version written by export.
const BackupVersion = 1

// Backup is the portable snapshot produced by export and accepted by import.
// Task ids are not preserved across a round trip; merge identity is the
// (project, title) pair, case-insensitive.
type Backup struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exportedAt"`
	Tasks      []BackupTask `json:"tasks"`
}

// BackupTask is one task in a backup payload.
type BackupTask struct {
	Title         string     `json:"title"`
	Project       string     `json:"project"`
	Status        string     `json:"status"`
	BlockedReason string     `json:"blockedReason,omitempty"`
	Priority      *int       `json:"priority,omitempty"`
	Notes         []Note     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// NewBackup snapshots the given tasks.
func NewBackup(tasks []Task, now time.Time) Backup {
	out := Backup{Version: BackupVersion, ExportedAt: now, Tasks: make([]BackupTask, len(tasks))}
	for i, t := range tasks {
		out.Tasks[i] = BackupTask{
			Title:         t.Title,
			Project:       t.Project,
			Status:        string(t.Status),
			BlockedReason: t.BlockedReason,
			Priority:      t.Priority,
			Notes:         t.Notes,
			CreatedAt:     t.CreatedAt,
			CompletedAt:   t.CompletedAt,
		}
	}
	return out
}

// MergeKey is the case-insensitive identity used by merge-mode import.
func MergeKey(project, title string) string {
	return strings.ToLower(project) + ":" + strings.ToLower(title)
}

// MergeNotes unions two note lists, de-duplicated by the exact
// (timestamp, text) pair and sorted by timestamp.
func MergeNotes(a, b []Note) []Note {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]Note, 0, len(a)+len(b))
	for _, n := range append(append([]Note{}, a...), b...) {
		key := n.At.UTC().Format(time.RFC3339Nano) + "|" + n.Text
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	if len(out) == 0 {
		return nil
	}
	return out
}
