package model

import (
	"strings"
	"time"

	"langtest-practice/internal/domain"

	"github.com/oklog/ulid/v2"
)

type TaskMode string

const (
	TaskModeWriting  TaskMode = "WRITING"
	TaskModeSpeaking TaskMode = "SPEAKING"
)

// ParseTaskMode accepts the mode case-insensitively.
func ParseTaskMode(s string) (TaskMode, error) {
	switch TaskMode(strings.ToUpper(strings.TrimSpace(s))) {
	case TaskModeWriting:
		return TaskModeWriting, nil
	case TaskModeSpeaking:
		return TaskModeSpeaking, nil
	}
	return "", domain.ErrInvalidArgument
}

// TaskSummary carries the only task fields the entitlement core needs.
type TaskSummary struct {
	Type string
	Mode TaskMode
}

func (t TaskSummary) Validate() error {
	if strings.TrimSpace(t.Type) == "" {
		return domain.ErrInvalidArgument
	}
	if t.Mode != TaskModeWriting && t.Mode != TaskModeSpeaking {
		return domain.ErrInvalidArgument
	}
	return nil
}

// UsageEvent is an append-only audit row for one consumption.
type UsageEvent struct {
	ID        string  // ULID, sortable by creation
	AccountID *string // nil for guest usage (never recorded today)
	TaskType  string
	TaskMode  TaskMode
	IsDemo    bool
	CreatedAt time.Time
}

func NewUsageEvent(accountID string, task TaskSummary, isDemo bool, at time.Time) *UsageEvent {
	ev := &UsageEvent{
		ID:        ulid.Make().String(),
		TaskType:  task.Type,
		TaskMode:  task.Mode,
		IsDemo:    isDemo,
		CreatedAt: at.UTC(),
	}
	if accountID != "" {
		id := accountID
		ev.AccountID = &id
	}
	return ev
}
