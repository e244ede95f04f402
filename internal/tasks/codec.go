package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/pscheid92/faredesk/internal/domain"
)

const recordVersion = 1

type envelope struct {
	Version int                   `json:"v"`
	Task    domain.BackgroundTask `json:"task"`
}

// EncodeRecord serializes a task for the durable mirror.
func EncodeRecord(task domain.BackgroundTask) ([]byte, error) {
	data, err := json.Marshal(envelope{Version: recordVersion, Task: task})
	if err != nil {
		return nil, fmt.Errorf("encode task record: %w", err)
	}
	return data, nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(data []byte) (domain.BackgroundTask, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.BackgroundTask{}, fmt.Errorf("decode task record: %w", err)
	}
	if env.Version != recordVersion {
		return domain.BackgroundTask{}, fmt.Errorf("decode task record v%d: %w", env.Version, domain.ErrRecordVersion)
	}
	if env.Task.ID == "" {
		return domain.BackgroundTask{}, fmt.Errorf("decode task record: missing id")
	}
	return env.Task, nil
}
