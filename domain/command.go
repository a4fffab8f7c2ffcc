package domain

import (
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
)

// Command is one gateway operation with strongly typed arguments. The set of
// implementations is closed; the gateway dispatches over it exhaustively.
type Command interface {
	Op() string
	// Mutating reports whether applying the command can change the store.
	Mutating() bool
}

type AddCommand struct {
	Title    string
	Project  string
	Note     string
	Priority *int
}

type DoneCommand struct{ Ref TaskRef }
type ReopenCommand struct{ Ref TaskRef }
type StartCommand struct{ Ref TaskRef }

type BlockCommand struct {
	Ref    TaskRef
	Reason string
}

type UnblockCommand struct{ Ref TaskRef }

type StatusCommand struct {
	Ref    TaskRef
	Status Status
	Reason string
}

type NoteCommand struct {
	Ref  TaskRef
	Text string
}

type RenameCommand struct {
	Ref   TaskRef
	Title string
}

type DeleteCommand struct{ Ref TaskRef }

type DeleteManyCommand struct {
	Queries []string
	Status  Status // optional; empty means any status
}

type PurgeCommand struct{}

type FindCommand struct{ Queries []string }

type GetCommand struct{ Ref TaskRef }

type ListCommand struct{}
type ActiveCommand struct{}

type BatchCommand struct{ Ops []json.RawMessage }

type ImportCommand struct {
	Mode string
	Data json.RawMessage
}

type ExportCommand struct{}
type HelpCommand struct{}
type SweepCommand struct{}

func (AddCommand) Op() string        { return "add" }
func (DoneCommand) Op() string       { return "done" }
func (ReopenCommand) Op() string     { return "reopen" }
func (StartCommand) Op() string      { return "start" }
func (BlockCommand) Op() string      { return "block" }
func (UnblockCommand) Op() string    { return "unblock" }
func (StatusCommand) Op() string     { return "status" }
func (NoteCommand) Op() string       { return "note" }
func (RenameCommand) Op() string     { return "rename" }
func (DeleteCommand) Op() string     { return "delete" }
func (DeleteManyCommand) Op() string { return "deleteMany" }
func (PurgeCommand) Op() string      { return "purge" }
func (FindCommand) Op() string       { return "find" }
func (GetCommand) Op() string        { return "get" }
func (ListCommand) Op() string       { return "list" }
func (ActiveCommand) Op() string     { return "active" }
func (BatchCommand) Op() string      { return "batch" }
func (ImportCommand) Op() string     { return "import" }
func (ExportCommand) Op() string     { return "export" }
func (HelpCommand) Op() string       { return "help" }
func (SweepCommand) Op() string      { return "sweep" }

func (AddCommand) Mutating() bool        { return true }
func (DoneCommand) Mutating() bool       { return true }
func (ReopenCommand) Mutating() bool     { return true }
func (StartCommand) Mutating() bool      { return true }
func (BlockCommand) Mutating() bool      { return true }
func (UnblockCommand) Mutating() bool    { return true }
func (StatusCommand) Mutating() bool     { return true }
func (NoteCommand) Mutating() bool       { return true }
func (RenameCommand) Mutating() bool     { return true }
func (DeleteCommand) Mutating() bool     { return true }
func (DeleteManyCommand) Mutating() bool { return true }
func (PurgeCommand) Mutating() bool      { return true }
func (FindCommand) Mutating() bool       { return false }
func (GetCommand) Mutating() bool        { return false }
func (ListCommand) Mutating() bool       { return false }
func (ActiveCommand) Mutating() bool     { return false }
func (BatchCommand) Mutating() bool      { return true }
func (ImportCommand) Mutating() bool     { return true }
func (ExportCommand) Mutating() bool     { return false }
func (HelpCommand) Mutating() bool       { return false }
func (SweepCommand) Mutating() bool      { return true }

// opNames is the canonical operation vocabulary, in help order.
var opNames = []string{
	"add", "done", "reopen", "start", "block", "unblock", "status",
	"note", "rename", "delete", "deleteMany", "purge",
	"find", "get", "list", "active",
	"batch", "import", "export", "sweep", "help",
}

// opAliases maps accepted spellings onto canonical op names.
var opAliases = map[string]string{
	"complete":    "done",
	"finish":      "done",
	"activate":    "start",
	"begin":       "start",
	"remove":      "delete",
	"del":         "delete",
	"rm":          "delete",
	"delete_many": "deleteMany",
	"search":      "find",
	"query":       "find",
	"ls":          "list",
	"backup":      "export",
	"restore":     "import",
}

// OpNames returns the canonical operation names.
func OpNames() []string {
	out := make([]string, len(opNames))
	copy(out, opNames)
	return out
}

// CanonicalOp folds an op spelling to its canonical name.
func CanonicalOp(op string) (string, bool) {
	folded := strings.ToLower(strings.TrimSpace(op))
	for _, name := range opNames {
		if strings.ToLower(name) == folded {
			return name, true
		}
	}
	if name, ok := opAliases[folded]; ok {
		return name, true
	}
	return "", false
}

// opTypos maps frequently observed misspellings onto canonical ops.
var opTypos = map[string]string{
	"ad":     "add",
	"dne":    "done",
	"doen":   "done",
	"strat":  "start",
	"blokc":  "block",
	"stauts": "status",
	"lsit":   "list",
	"improt": "import",
	"exprot": "export",
	"prune":  "purge",
}

// SuggestOp returns the closest valid op name for an unknown spelling, or ""
// when nothing is close: typo table first, then prefix, then substring.
func SuggestOp(op string) string {
	folded := strings.ToLower(strings.TrimSpace(op))
	if folded == "" {
		return ""
	}
	if name, ok := opTypos[folded]; ok {
		return name
	}
	for _, name := range opNames {
		nf := strings.ToLower(name)
		if strings.HasPrefix(nf, folded) || strings.HasPrefix(folded, nf) {
			return name
		}
	}
	for _, name := range opNames {
		nf := strings.ToLower(name)
		if strings.Contains(nf, folded) || strings.Contains(folded, nf) {
			return name
		}
	}
	return ""
}

// stringList accepts either a single JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		var arr []string
		if err := sonic.Unmarshal(b, &arr); err != nil {
			return err
		}
		*s = arr
		return nil
	}
	var one string
	if err := sonic.Unmarshal(b, &one); err != nil {
		return err
	}
	if one == "" {
		*s = nil
		return nil
	}
	*s = []string{one}
	return nil
}

// rawCommand is the loose request envelope: {"op": ..., op-specific fields}.
type rawCommand struct {
	Op       string            `json:"op"`
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Project  string            `json:"project"`
	Status   string            `json:"status"`
	Reason   string            `json:"reason"`
	Text     string            `json:"text"`
	Note     string            `json:"note"`
	Q        stringList        `json:"q"`
	Exact    bool              `json:"exact"`
	Priority *int              `json:"priority"`
	Mode     string            `json:"mode"`
	Data     json.RawMessage   `json:"data"`
	Ops      []json.RawMessage `json:"ops"`
}

// taskRef builds a reference from id, q or title, in that priority.
func (r rawCommand) taskRef() (TaskRef, error) {
	ref := TaskRef{ID: strings.TrimSpace(r.ID), Exact: r.Exact}
	if ref.ID != "" {
		return ref, nil
	}
	queries := r.Q
	if len(queries) == 0 && strings.TrimSpace(r.Title) != "" {
		queries = stringList{r.Title}
	}
	for _, q := range queries {
		if strings.TrimSpace(q) != "" {
			ref.Queries = append(ref.Queries, q)
		}
	}
	if len(ref.Queries) == 0 {
		return ref, ArgumentError{Field: "title", Reason: "task reference requires id, title or q"}
	}
	return ref, nil
}

// queryRef builds a reference from id or q only, leaving title free to carry
// a new value (used by rename).
func (r rawCommand) queryRef() (TaskRef, error) {
	ref := TaskRef{ID: strings.TrimSpace(r.ID), Exact: r.Exact}
	if ref.ID != "" {
		return ref, nil
	}
	for _, q := range r.Q {
		if strings.TrimSpace(q) != "" {
			ref.Queries = append(ref.Queries, q)
		}
	}
	if len(ref.Queries) == 0 {
		return ref, ArgumentError{Field: "q", Reason: "rename requires id or q to pick the task"}
	}
	return ref, nil
}

// ParseCommand decodes a request envelope into a typed command, validating
// required fields up front.
func ParseCommand(data []byte) (Command, error) {
	var raw rawCommand
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, ArgumentError{Field: "body", Reason: "invalid JSON"}
	}
	if strings.TrimSpace(raw.Op) == "" {
		return nil, ArgumentError{Field: "op", Reason: "required"}
	}
	op, ok := CanonicalOp(raw.Op)
	if !ok {
		return nil, UnknownOpError{Op: raw.Op, Suggestion: SuggestOp(raw.Op)}
	}

	switch op {
	case "add":
		if strings.TrimSpace(raw.Title) == "" {
			return nil, ArgumentError{Field: "title", Reason: "required"}
		}
		if strings.TrimSpace(raw.Project) == "" {
			return nil, ArgumentError{Field: "project", Reason: "required"}
		}
		return AddCommand{Title: raw.Title, Project: raw.Project, Note: raw.Note, Priority: raw.Priority}, nil
	case "done":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		return DoneCommand{Ref: ref}, nil
	case "reopen":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		return ReopenCommand{Ref: ref}, nil
	case "start":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		return StartCommand{Ref: ref}, nil
	case "block":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw.Reason) == "" {
			return nil, ArgumentError{Field: "reason", Reason: "required"}
		}
		return BlockCommand{Ref: ref, Reason: raw.Reason}, nil
	case "unblock":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		return UnblockCommand{Ref: ref}, nil
	case "status":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		status, err := ParseStatus(raw.Status)
		if err != nil {
			return nil, err
		}
		if status == StatusBlocked && strings.TrimSpace(raw.Reason) == "" {
			return nil, ArgumentError{Field: "reason", Reason: "required when status is blocked"}
		}
		return StatusCommand{Ref: ref, Status: status, Reason: raw.Reason}, nil
	case "note":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw.Text) == "" {
			return nil, ArgumentError{Field: "text", Reason: "required"}
		}
		return NoteCommand{Ref: ref, Text: raw.Text}, nil
	case "rename":
		ref, err := raw.queryRef()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw.Title) == "" {
			return nil, ArgumentError{Field: "title", Reason: "new title required"}
		}
		return RenameCommand{Ref: ref, Title: raw.Title}, nil
	case "delete":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		return DeleteCommand{Ref: ref}, nil
	case "deleteMany":
		if len(raw.Q) == 0 {
			return nil, ArgumentError{Field: "q", Reason: "required"}
		}
		cmd := DeleteManyCommand{Queries: raw.Q}
		if strings.TrimSpace(raw.Status) != "" {
			status, err := ParseStatus(raw.Status)
			if err != nil {
				return nil, err
			}
			cmd.Status = status
		}
		return cmd, nil
	case "purge":
		return PurgeCommand{}, nil
	case "find":
		if len(raw.Q) == 0 {
			return nil, ArgumentError{Field: "q", Reason: "required"}
		}
		return FindCommand{Queries: raw.Q}, nil
	case "get":
		ref, err := raw.taskRef()
		if err != nil {
			return nil, err
		}
		return GetCommand{Ref: ref}, nil
	case "list":
		return ListCommand{}, nil
	case "active":
		return ActiveCommand{}, nil
	case "batch":
		if raw.Ops == nil {
			return nil, ArgumentError{Field: "ops", Reason: "required"}
		}
		return BatchCommand{Ops: raw.Ops}, nil
	case "import":
		if len(raw.Data) == 0 {
			return nil, ArgumentError{Field: "data", Reason: "required"}
		}
		mode := strings.ToLower(strings.TrimSpace(raw.Mode))
		if mode == "" {
			mode = "merge"
		}
		switch mode {
		case "replace", "merge", "append":
		default:
			return nil, ArgumentError{Field: "mode", Reason: "must be replace, merge or append"}
		}
		return ImportCommand{Mode: mode, Data: raw.Data}, nil
	case "export":
		return ExportCommand{}, nil
	case "help":
		return HelpCommand{}, nil
	case "sweep":
		return SweepCommand{}, nil
	}
	return nil, UnknownOpError{Op: raw.Op, Suggestion: SuggestOp(raw.Op)}
}
