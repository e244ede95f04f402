package domain

import (
	"context"
	"encoding/json"
	"time"
)

type TaskType string

const (
	TaskRegister       TaskType = "register"
	TaskSettlement     TaskType = "settlement"
	TaskMockSettlement TaskType = "mock_settlement"
	TaskNetworkRebuild TaskType = "network_rebuild"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskRegister, TaskSettlement, TaskMockSettlement, TaskNetworkRebuild:
		return true
	default:
		return false
	}
}

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusSuccess    TaskStatus = "success"
	StatusError      TaskStatus = "error"
)

// Active reports whether the status occupies the single current-task slot.
func (s TaskStatus) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

type BackgroundTask struct {
	ID        string          `json:"id"`
	Type      TaskType        `json:"type"`
	Status    TaskStatus      `json:"status"`
	StartTime time.Time       `json:"startTime"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ActiveOperation is one entry of the backend's status report.
type ActiveOperation struct {
	ID     string   `json:"id,omitempty"`
	Type   TaskType `json:"type,omitempty"`
	Status string   `json:"status"`
}

// TaskBackend is the settlement backend surface the orchestrator drives.
type TaskBackend interface {
	Execute(ctx context.Context, taskType TaskType, payload json.RawMessage) ExecuteResult
	Status(ctx context.Context, taskType TaskType) ([]ActiveOperation, error)
}

// ExecuteKind classifies the outcome of a long-running execute call.
type ExecuteKind int

const (
	ExecuteSucceeded        ExecuteKind = iota // server reported completion
	ExecuteFailed                              // server reported an error payload
	ExecuteContextDestroyed                    // call aborted before a definitive answer
)

func (k ExecuteKind) String() string {
	switch k {
	case ExecuteSucceeded:
		return "success"
	case ExecuteFailed:
		return "failure"
	case ExecuteContextDestroyed:
		return "context_destroyed"
	default:
		return "unknown"
	}
}

type ExecuteResult struct {
	Kind      ExecuteKind
	Message   string
	Code      string // structured error code, when the backend sent one
	Cancelled bool   // failure is an administrative cancellation
}
