package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

// taskPartition is the partition key of the shared task list. The list is a
// single partition so RowKey order (creation order) is the store order.
const taskPartition = "task"

const edmInt64 = "Edm.Int64"

// Storage provides access to the hosted task table and the audit event queue.
type Storage struct {
	tasks      *aztables.Client
	eventQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{tasks: svc.NewClient(tasksTable), eventQueue: eq}, nil
}

// taskEntity is the persisted shape of a task. ProjectKey and Status carry
// the filterable values; notes are embedded as a JSON column since they are
// owned exclusively by the task.
type taskEntity struct {
	aztables.Entity
	Title           string  `json:"Title"`
	Project         string  `json:"Project"`
	ProjectKey      string  `json:"ProjectKey"`
	Status          string  `json:"Status"`
	BlockedReason   string  `json:"BlockedReason,omitempty"`
	Priority        *int    `json:"Priority,omitempty"`
	Notes           string  `json:"Notes,omitempty"`
	CreatedAt       int64   `json:"CreatedAt,string"`
	CreatedAtType   string  `json:"CreatedAt@odata.type"`
	UpdatedAt       int64   `json:"UpdatedAt,string"`
	UpdatedAtType   string  `json:"UpdatedAt@odata.type"`
	CompletedAt     *int64  `json:"CompletedAt,omitempty,string"`
	CompletedAtType *string `json:"CompletedAt@odata.type,omitempty"`
}

func encodeTask(t domain.Task) ([]byte, error) {
	ent := taskEntity{
		Entity:        aztables.Entity{PartitionKey: taskPartition, RowKey: t.ID},
		Title:         t.Title,
		Project:       t.Project,
		ProjectKey:    t.ProjectKey(),
		Status:        string(t.Status),
		BlockedReason: t.BlockedReason,
		Priority:      t.Priority,
		CreatedAt:     t.CreatedAt.UnixNano(),
		CreatedAtType: edmInt64,
		UpdatedAt:     t.UpdatedAt.UnixNano(),
		UpdatedAtType: edmInt64,
	}
	if t.CompletedAt != nil {
		done := t.CompletedAt.UnixNano()
		typ := edmInt64
		ent.CompletedAt = &done
		ent.CompletedAtType = &typ
	}
	if len(t.Notes) > 0 {
		notes, err := json.Marshal(t.Notes)
		if err != nil {
			return nil, err
		}
		ent.Notes = string(notes)
	}
	return json.Marshal(ent)
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:            ent.RowKey,
		Title:         ent.Title,
		Project:       ent.Project,
		Status:        domain.Status(ent.Status),
		BlockedReason: ent.BlockedReason,
		Priority:      ent.Priority,
		CreatedAt:     time.Unix(0, ent.CreatedAt).UTC(),
		UpdatedAt:     time.Unix(0, ent.UpdatedAt).UTC(),
	}
	if ent.CompletedAt != nil {
		done := time.Unix(0, *ent.CompletedAt).UTC()
		t.CompletedAt = &done
	}
	if ent.Notes != "" {
		if err := json.Unmarshal([]byte(ent.Notes), &t.Notes); err != nil {
			return domain.Task{}, err
		}
	}
	return t, nil
}

// Get retrieves a task by id, returning nil when the id is unknown.
func (s *Storage) Get(ctx context.Context, id string) (*domain.Task, error) {
	resp, err := s.tasks.GetEntity(ctx, taskPartition, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	t, err := decodeTask(resp.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List retrieves tasks in store order, optionally filtered by project
// (case-insensitive) and status. Both filters hit indexed columns.
func (s *Storage) List(ctx context.Context, project string, status domain.Status) ([]domain.Task, error) {
	clauses := []string{"PartitionKey eq '" + taskPartition + "'"}
	if project != "" {
		clauses = append(clauses, "ProjectKey eq '"+escapeOData(strings.ToLower(project))+"'")
	}
	if status != "" {
		clauses = append(clauses, "Status eq '"+escapeOData(string(status))+"'")
	}
	filter := strings.Join(clauses, " and ")
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// Insert adds a new task.
func (s *Storage) Insert(ctx context.Context, t domain.Task) error {
	data, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = s.tasks.AddEntity(ctx, data, nil)
	return err
}

// Update replaces the stored task.
func (s *Storage) Update(ctx context.Context, t domain.Task) error {
	data, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = s.tasks.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// Delete removes a task. Deleting an already-deleted task is not an error.
func (s *Storage) Delete(ctx context.Context, id string) error {
	_, err := s.tasks.DeleteEntity(ctx, taskPartition, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil
		}
	}
	return err
}

// Append sends an audit event to the event queue.
func (s *Storage) Append(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

func escapeOData(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
