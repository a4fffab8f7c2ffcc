package domain

import "time"

// Event is an append-only audit record of one applied command. Events are
// write-only from the gateway's perspective and are not required for
// correctness of the task view.
type Event struct {
	ID      string         `json:"id"`
	Op      string         `json:"op"`
	TaskID  string         `json:"taskId,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Source  string         `json:"source"`
	At      time.Time      `json:"at"`
}
