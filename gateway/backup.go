package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

// backupSchema is the declared shape of an import payload. Every import is
// validated against it in full before any mutation begins.
const backupSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "tasks"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "exportedAt": {"type": "string"},
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "project", "status"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "project": {"type": "string", "minLength": 1},
          "status": {"type": "string"},
          "blockedReason": {"type": "string"},
          "priority": {"type": "integer"},
          "createdAt": {"type": "string"},
          "completedAt": {"type": "string"},
          "notes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["text", "at"],
              "properties": {
                "text": {"type": "string"},
                "at": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

var (
	backupSchemaOnce     sync.Once
	compiledBackupSchema *jsonschema.Schema
	backupSchemaErr      error
)

func loadBackupSchema() (*jsonschema.Schema, error) {
	backupSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(backupSchema))
		if err != nil {
			backupSchemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("backup.json", doc); err != nil {
			backupSchemaErr = err
			return
		}
		compiledBackupSchema, backupSchemaErr = c.Compile("backup.json")
	})
	return compiledBackupSchema, backupSchemaErr
}

// stagedImport is a backup payload that passed validation in full: shape
// checked against the schema and every status literal parsed.
type stagedImport struct {
	backup   domain.Backup
	statuses []domain.Status
}

func parseBackup(data []byte) (stagedImport, error) {
	schema, err := loadBackupSchema()
	if err != nil {
		return stagedImport{}, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return stagedImport{}, domain.SchemaError{Detail: "invalid JSON: " + err.Error()}
	}
	if err := schema.Validate(doc); err != nil {
		return stagedImport{}, domain.SchemaError{Detail: err.Error()}
	}
	var b domain.Backup
	if err := sonic.Unmarshal(data, &b); err != nil {
		return stagedImport{}, domain.SchemaError{Detail: err.Error()}
	}
	staged := stagedImport{backup: b, statuses: make([]domain.Status, len(b.Tasks))}
	for i, bt := range b.Tasks {
		status, err := domain.ParseStatus(bt.Status)
		if err != nil {
			return stagedImport{}, err
		}
		staged.statuses[i] = status
	}
	return staged, nil
}

// ImportSummary reports what an import did.
type ImportSummary struct {
	Mode     string `json:"mode"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Deleted  int    `json:"deleted"`
}

func (g *Gateway) importBackup(ctx context.Context, source string, c domain.ImportCommand) (Response, error) {
	staged, err := parseBackup(c.Data)
	if err != nil {
		return Response{}, err
	}

	var summary ImportSummary
	switch c.Mode {
	case "replace":
		summary, err = g.importReplace(ctx, staged)
	case "merge":
		summary, err = g.importMerge(ctx, staged)
	case "append":
		summary, err = g.importAppend(ctx, staged)
	default:
		return Response{}, domain.ArgumentError{Field: "mode", Reason: "must be replace, merge or append"}
	}
	if err != nil {
		return Response{}, err
	}

	g.emit(ctx, source, "import", "", map[string]any{
		"mode":     summary.Mode,
		"inserted": summary.Inserted,
		"updated":  summary.Updated,
		"deleted":  summary.Deleted,
	})
	view, err := g.View(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{OK: true, Op: "import", Import: &summary, View: view}, nil
}

// importReplace deletes every existing task and inserts the incoming ones
// verbatim with a fresh updatedAt.
func (g *Gateway) importReplace(ctx context.Context, staged stagedImport) (ImportSummary, error) {
	existing, err := g.repo.List(ctx, "", "")
	if err != nil {
		return ImportSummary{}, err
	}
	for _, t := range existing {
		if err := g.repo.Delete(ctx, t.ID); err != nil {
			return ImportSummary{}, err
		}
	}
	now := g.now()
	for i, bt := range staged.backup.Tasks {
		if err := g.repo.Insert(ctx, taskFromBackup(bt, staged.statuses[i], now)); err != nil {
			return ImportSummary{}, err
		}
	}
	return ImportSummary{Mode: "replace", Inserted: len(staged.backup.Tasks), Deleted: len(existing)}, nil
}

// importMerge patches existing tasks keyed by lowercase(project):lowercase(title)
// and inserts the rest. Matched tasks take the incoming status bookkeeping and
// the union of both note lists.
func (g *Gateway) importMerge(ctx context.Context, staged stagedImport) (ImportSummary, error) {
	existing, err := g.repo.List(ctx, "", "")
	if err != nil {
		return ImportSummary{}, err
	}
	index := make(map[string]int, len(existing))
	for i, t := range existing {
		index[domain.MergeKey(t.Project, t.Title)] = i
	}

	summary := ImportSummary{Mode: "merge"}
	now := g.now()
	for i, bt := range staged.backup.Tasks {
		key := domain.MergeKey(bt.Project, bt.Title)
		if idx, ok := index[key]; ok {
			t := existing[idx]
			t.Transition(staged.statuses[i], bt.BlockedReason, now)
			if staged.statuses[i] == domain.StatusDone && bt.CompletedAt != nil {
				t.CompletedAt = bt.CompletedAt
			}
			t.Notes = domain.MergeNotes(t.Notes, bt.Notes)
			if err := g.repo.Update(ctx, t); err != nil {
				return ImportSummary{}, err
			}
			existing[idx] = t
			summary.Updated++
			continue
		}
		t := taskFromBackup(bt, staged.statuses[i], now)
		if err := g.repo.Insert(ctx, t); err != nil {
			return ImportSummary{}, err
		}
		index[key] = len(existing)
		existing = append(existing, t)
		summary.Inserted++
	}
	return summary, nil
}

// importAppend inserts every incoming task as new, duplicates included.
func (g *Gateway) importAppend(ctx context.Context, staged stagedImport) (ImportSummary, error) {
	now := g.now()
	for i, bt := range staged.backup.Tasks {
		if err := g.repo.Insert(ctx, taskFromBackup(bt, staged.statuses[i], now)); err != nil {
			return ImportSummary{}, err
		}
	}
	return ImportSummary{Mode: "append", Inserted: len(staged.backup.Tasks)}, nil
}

func taskFromBackup(bt domain.BackupTask, status domain.Status, now time.Time) domain.Task {
	t := domain.NewTask(bt.Title, bt.Project, now)
	if !bt.CreatedAt.IsZero() {
		t.CreatedAt = bt.CreatedAt
	}
	t.Priority = bt.Priority
	t.Notes = domain.MergeNotes(bt.Notes, nil)
	t.Transition(status, bt.BlockedReason, now)
	if status == domain.StatusDone && bt.CompletedAt != nil {
		t.CompletedAt = bt.CompletedAt
	}
	return t
}

func (g *Gateway) export(ctx context.Context) (Response, error) {
	tasks, err := g.repo.List(ctx, "", "")
	if err != nil {
		return Response{}, err
	}
	b := domain.NewBackup(tasks, g.now())
	return Response{OK: true, Op: "export", Backup: &b}, nil
}
