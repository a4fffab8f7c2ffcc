package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

// Repository abstracts the shared task store. Atomicity of each call is the
// store's responsibility; the gateway adds no locking of its own.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, project string, status domain.Status) ([]domain.Task, error)
	Insert(ctx context.Context, t domain.Task) error
	Update(ctx context.Context, t domain.Task) error
	Delete(ctx context.Context, id string) error
}

// EventSink receives audit events. Append failures never fail a command.
type EventSink interface {
	Append(ctx context.Context, ev domain.Event) error
}

// Gateway applies commands against the shared task store. It is a stateless
// request-response component; every invocation reads what it needs.
type Gateway struct {
	repo   Repository
	events EventSink
	sweep  SweepPolicy
	logger *log.Logger
	now    func() time.Time
}

// New creates a Gateway. events may be nil to disable the audit trail.
func New(repo Repository, events EventSink, sweep SweepPolicy, logger *log.Logger) *Gateway {
	if repo == nil {
		panic("gateway.New: repository is required")
	}
	if logger == nil {
		logger = log.New()
	}
	return &Gateway{
		repo:   repo,
		events: events,
		sweep:  sweep.normalized(),
		logger: logger,
		now:    time.Now,
	}
}

// Response is the success envelope of one applied command. Mutating commands
// carry the refreshed aggregate view.
type Response struct {
	OK          bool             `json:"ok"`
	Op          string           `json:"op,omitempty"`
	Task        *domain.Task     `json:"task,omitempty"`
	Tasks       []domain.Task    `json:"tasks,omitempty"`
	Count       *int             `json:"count,omitempty"`
	Deleted     *int             `json:"deleted,omitempty"`
	Swept       []string         `json:"swept,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Import      *ImportSummary   `json:"import,omitempty"`
	Backup      *domain.Backup   `json:"backup,omitempty"`
	Results     []BatchResult    `json:"results,omitempty"`
	Help        *Help            `json:"help,omitempty"`
	View        *View            `json:"view,omitempty"`
}

// BatchResult is the outcome of one sub-operation within a batch.
type BatchResult struct {
	Op      string             `json:"op,omitempty"`
	OK      bool               `json:"ok"`
	Error   string             `json:"error,omitempty"`
	Matches []domain.Candidate `json:"matches,omitempty"`
	Task    *domain.Task       `json:"task,omitempty"`
	Tasks   []domain.Task      `json:"tasks,omitempty"`
	Count   *int               `json:"count,omitempty"`
	Deleted *int               `json:"deleted,omitempty"`
}

// Apply dispatches one command. source tags the resulting audit event with
// the issuing client.
func (g *Gateway) Apply(ctx context.Context, source string, cmd domain.Command) (Response, error) {
	switch c := cmd.(type) {
	case domain.AddCommand:
		return g.add(ctx, source, c)
	case domain.DoneCommand:
		return g.transition(ctx, source, c.Op(), c.Ref, domain.StatusDone, "")
	case domain.ReopenCommand:
		return g.transition(ctx, source, c.Op(), c.Ref, domain.StatusPlanned, "")
	case domain.StartCommand:
		return g.transition(ctx, source, c.Op(), c.Ref, domain.StatusActive, "")
	case domain.BlockCommand:
		return g.transition(ctx, source, c.Op(), c.Ref, domain.StatusBlocked, c.Reason)
	case domain.UnblockCommand:
		return g.transition(ctx, source, c.Op(), c.Ref, domain.StatusPlanned, "")
	case domain.StatusCommand:
		return g.transition(ctx, source, c.Op(), c.Ref, c.Status, c.Reason)
	case domain.NoteCommand:
		return g.note(ctx, source, c)
	case domain.RenameCommand:
		return g.rename(ctx, source, c)
	case domain.DeleteCommand:
		return g.delete(ctx, source, c)
	case domain.DeleteManyCommand:
		return g.deleteMany(ctx, source, c)
	case domain.PurgeCommand:
		return g.purge(ctx, source)
	case domain.FindCommand:
		return g.find(ctx, c)
	case domain.GetCommand:
		return g.get(ctx, c)
	case domain.ListCommand:
		return g.list(ctx)
	case domain.ActiveCommand:
		return g.active(ctx)
	case domain.BatchCommand:
		return g.batch(ctx, source, c)
	case domain.ImportCommand:
		return g.importBackup(ctx, source, c)
	case domain.ExportCommand:
		return g.export(ctx)
	case domain.HelpCommand:
		help := HelpCatalog()
		return Response{OK: true, Op: "help", Help: &help}, nil
	case domain.SweepCommand:
		return g.runSweep(ctx, source)
	}
	return Response{}, fmt.Errorf("unhandled command %T", cmd)
}

// View recomputes the aggregate projection from the current task collection.
func (g *Gateway) View(ctx context.Context) (*View, error) {
	tasks, err := g.repo.List(ctx, "", "")
	if err != nil {
		return nil, err
	}
	v := BuildView(tasks)
	return &v, nil
}

func (g *Gateway) mutated(ctx context.Context, op string, t *domain.Task) (Response, error) {
	view, err := g.View(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{OK: true, Op: op, Task: t, View: view}, nil
}

func (g *Gateway) add(ctx context.Context, source string, c domain.AddCommand) (Response, error) {
	tasks, err := g.repo.List(ctx, "", "")
	if err != nil {
		return Response{}, err
	}
	project, suggestions := domain.CanonicalProject(domain.Projects(tasks), c.Project)
	now := g.now()
	t := domain.NewTask(c.Title, project, now)
	t.Priority = c.Priority
	if c.Note != "" {
		t.AppendNote(c.Note, now)
	}
	if err := g.repo.Insert(ctx, t); err != nil {
		return Response{}, err
	}
	g.emit(ctx, source, "add", t.ID, map[string]any{"after": taskSnapshot(t)})
	resp, err := g.mutated(ctx, "add", &t)
	if err != nil {
		return Response{}, err
	}
	resp.Suggestions = suggestions
	return resp, nil
}

func (g *Gateway) transition(ctx context.Context, source, op string, ref domain.TaskRef, status domain.Status, reason string) (Response, error) {
	t, err := g.resolve(ctx, ref)
	if err != nil {
		return Response{}, err
	}
	before := taskSnapshot(t)
	t.Transition(status, reason, g.now())
	if err := g.repo.Update(ctx, t); err != nil {
		return Response{}, err
	}
	g.emit(ctx, source, op, t.ID, map[string]any{"before": before, "after": taskSnapshot(t)})
	return g.mutated(ctx, op, &t)
}

func (g *Gateway) note(ctx context.Context, source string, c domain.NoteCommand) (Response, error) {
	t, err := g.resolve(ctx, c.Ref)
	if err != nil {
		return Response{}, err
	}
	t.AppendNote(c.Text, g.now())
	if err := g.repo.Update(ctx, t); err != nil {
		return Response{}, err
	}
	g.emit(ctx, source, "note", t.ID, map[string]any{"text": c.Text})
	return g.mutated(ctx, "note", &t)
}

func (g *Gateway) rename(ctx context.Context, source string, c domain.RenameCommand) (Response, error) {
	t, err := g.resolve(ctx, c.Ref)
	if err != nil {
		return Response{}, err
	}
	before := t.Title
	t.Rename(c.Title, g.now())
	if err := g.repo.Update(ctx, t); err != nil {
		return Response{}, err
	}
	g.emit(ctx, source, "rename", t.ID, map[string]any{"before": before, "after": t.Title})
	return g.mutated(ctx, "rename", &t)
}

func (g *Gateway) delete(ctx context.Context, source string, c domain.DeleteCommand) (Response, error) {
	t, err := g.resolve(ctx, c.Ref)
	if err != nil {
		return Response{}, err
	}
	if err := g.repo.Delete(ctx, t.ID); err != nil {
		return Response{}, err
	}
	g.emit(ctx, source, "delete", t.ID, map[string]any{"before": taskSnapshot(t)})
	view, err := g.View(ctx)
	if err != nil {
		return Response{}, err
	}
	one := 1
	return Response{OK: true, Op: "delete", Task: &t, Deleted: &one, View: view}, nil
}

func (g *Gateway) deleteMany(ctx context.Context, source string, c domain.DeleteManyCommand) (Response, error) {
	tasks, err := g.repo.List(ctx, "", "")
	if err != nil {
		return Response{}, err
	}
	matches := domain.MatchTasks(tasks, c.Queries)
	var ids []string
	for _, t := range matches {
		if c.Status != "" && t.Status != c.Status {
			continue
		}
		if err := g.repo.Delete(ctx, t.ID); err != nil {
			return Response{}, err
		}
		ids = append(ids, t.ID)
	}
	g.emit(ctx, source, "deleteMany", "", map[string]any{"deleted": len(ids), "taskIds": ids})
	view, err := g.View(ctx)
	if err != nil {
		return Response{}, err
	}
	n := len(ids)
	return Response{OK: true, Op: "deleteMany", Deleted: &n, View: view}, nil
}

func (g *Gateway) purge(ctx context.Context, source string) (Response, error) {
	done, err := g.repo.List(ctx, "", domain.StatusDone)
	if err != nil {
		return Response{}, err
	}
	var ids []string
	for _, t := range done {
		if err := g.repo.Delete(ctx, t.ID); err != nil {
			return Response{}, err
		}
		ids = append(ids, t.ID)
	}
	g.emit(ctx, source, "purge", "", map[string]any{"deleted": len(ids), "taskIds": ids})
	view, err := g.View(ctx)
	if err != nil {
		return Response{}, err
	}
	n := len(ids)
	return Response{OK: true, Op: "purge", Deleted: &n, View: view}, nil
}

func (g *Gateway) find(ctx context.Context, c domain.FindCommand) (Response, error) {
	tasks, err := g.repo.List(ctx, "", "")
	if err != nil {
		return Response{}, err
	}
	matches := domain.MatchTasks(tasks, c.Queries)
	if matches == nil {
		matches = []domain.Task{}
	}
	n := len(matches)
	return Response{OK: true, Op: "find", Tasks: matches, Count: &n}, nil
}

func (g *Gateway) get(ctx context.Context, c domain.GetCommand) (Response, error) {
	t, err := g.resolve(ctx, c.Ref)
	if err != nil {
		return Response{}, err
	}
	return Response{OK: true, Op: "get", Task: &t}, nil
}

func (g *Gateway) list(ctx context.Context) (Response, error) {
	view, err := g.View(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{OK: true, Op: "list", View: view}, nil
}

func (g *Gateway) active(ctx context.Context) (Response, error) {
	tasks, err := g.repo.List(ctx, "", domain.StatusActive)
	if err != nil {
		return Response{}, err
	}
	n := len(tasks)
	return Response{OK: true, Op: "active", Tasks: tasks, Count: &n}, nil
}

// batch applies sub-operations in order. Each runs independently; a failure
// is recorded in its slot and does not abort the rest, and prior
// sub-operations stay committed.
func (g *Gateway) batch(ctx context.Context, source string, c domain.BatchCommand) (Response, error) {
	results := make([]BatchResult, 0, len(c.Ops))
	for _, raw := range c.Ops {
		sub, err := domain.ParseCommand(raw)
		if err != nil {
			results = append(results, batchFailure("", err))
			continue
		}
		if _, nested := sub.(domain.BatchCommand); nested {
			results = append(results, BatchResult{Op: "batch", Error: "batch cannot contain a nested batch"})
			continue
		}
		resp, err := g.Apply(ctx, source, sub)
		if err != nil {
			results = append(results, batchFailure(sub.Op(), err))
			continue
		}
		results = append(results, BatchResult{
			Op:      sub.Op(),
			OK:      true,
			Task:    resp.Task,
			Tasks:   resp.Tasks,
			Count:   resp.Count,
			Deleted: resp.Deleted,
		})
	}
	view, err := g.View(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{OK: true, Op: "batch", Results: results, View: view}, nil
}

func batchFailure(op string, err error) BatchResult {
	res := BatchResult{Op: op, Error: err.Error()}
	if amb, ok := err.(domain.AmbiguousError); ok {
		res.Matches = amb.Candidates
	}
	return res
}

func (g *Gateway) resolve(ctx context.Context, ref domain.TaskRef) (domain.Task, error) {
	// An id is a point read; only title queries need the full list.
	if ref.ID != "" {
		t, err := g.repo.Get(ctx, ref.ID)
		if err != nil {
			return domain.Task{}, err
		}
		if t == nil {
			return domain.Task{}, domain.NotFoundError{Ref: ref.ID}
		}
		return *t, nil
	}
	tasks, err := g.repo.List(ctx, "", "")
	if err != nil {
		return domain.Task{}, err
	}
	return domain.ResolveTask(tasks, ref)
}

func (g *Gateway) emit(ctx context.Context, source, op, taskID string, payload map[string]any) {
	if g.events == nil {
		return
	}
	ev := domain.Event{
		ID:      uuid.NewString(),
		Op:      op,
		TaskID:  taskID,
		Payload: payload,
		Source:  source,
		At:      g.now(),
	}
	if err := g.events.Append(ctx, ev); err != nil {
		g.logger.WithFields(log.Fields{"op": op, "task": taskID}).Warnf("audit event dropped: %v", err)
	}
}

func taskSnapshot(t domain.Task) map[string]any {
	snap := map[string]any{
		"title":   t.Title,
		"project": t.Project,
		"status":  string(t.Status),
	}
	if t.BlockedReason != "" {
		snap["blockedReason"] = t.BlockedReason
	}
	if t.CompletedAt != nil {
		snap["completedAt"] = t.CompletedAt
	}
	return snap
}
