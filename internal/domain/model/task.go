package model

import "encoding/json"

// Task is a practice task as served to clients. Details are opaque to the
// entitlement core; only Summary() feeds the ledger.
type Task struct {
	ID           string          `json:"id"`
	Mode         TaskMode        `json:"mode"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	Instructions string          `json:"instructions"`
	IsDemo       bool            `json:"isDemo,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
}

func (t *Task) Summary() TaskSummary { return TaskSummary{Type: t.Type, Mode: t.Mode} }

// TaskResult is the outcome of a generate/evaluate call. Degraded is set when the
// AI result was produced but the usage ledger could not record it.
type TaskResult struct {
	Payload  json.RawMessage
	Degraded bool
}
