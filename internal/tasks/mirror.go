package tasks

import (
	"context"
	"fmt"

	"github.com/pscheid92/faredesk/internal/domain"
)

// Fixed durable keys.
const (
	CurrentTaskKey  = "background-task-storage"
	ForceStoppedKey = "background-task-force-stopped"
)

var forceStoppedValue = []byte("true")

// Mirror persists the current task and the forced-stop marker to a durable store.
type Mirror struct {
	store domain.DurableStore
}

func NewMirror(store domain.DurableStore) *Mirror {
	return &Mirror{store: store}
}

func (m *Mirror) Save(ctx context.Context, task domain.BackgroundTask) error {
	data, err := EncodeRecord(task)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, CurrentTaskKey, data); err != nil {
		return fmt.Errorf("save current task: %w", err)
	}
	return nil
}

// Load returns the mirrored task. Undecodable records surface as an error
// alongside found=true so the caller can discard them.
func (m *Mirror) Load(ctx context.Context) (domain.BackgroundTask, bool, error) {
	data, ok, err := m.store.Get(ctx, CurrentTaskKey)
	if err != nil {
		return domain.BackgroundTask{}, false, fmt.Errorf("load current task: %w", err)
	}
	if !ok {
		return domain.BackgroundTask{}, false, nil
	}
	task, err := DecodeRecord(data)
	if err != nil {
		return domain.BackgroundTask{}, true, err
	}
	return task, true, nil
}

func (m *Mirror) Clear(ctx context.Context) error {
	if err := m.store.Delete(ctx, CurrentTaskKey); err != nil {
		return fmt.Errorf("clear current task: %w", err)
	}
	return nil
}

// MarkForceStopped records that an operator cancelled the running operation.
func (m *Mirror) MarkForceStopped(ctx context.Context) error {
	if err := m.store.Set(ctx, ForceStoppedKey, forceStoppedValue); err != nil {
		return fmt.Errorf("set force-stopped marker: %w", err)
	}
	return nil
}

// ConsumeForceStopped reports whether the marker was set and removes it.
func (m *Mirror) ConsumeForceStopped(ctx context.Context) (bool, error) {
	data, ok, err := m.store.Take(ctx, ForceStoppedKey)
	if err != nil {
		return false, fmt.Errorf("consume force-stopped marker: %w", err)
	}
	return ok && string(data) != "false", nil
}
