package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pscheid92/faredesk/internal/adapter/memory"
	"github.com/pscheid92/faredesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", "{", nil},
		{"unknown version", `{"v":7,"task":{"id":"t1"}}`, domain.ErrRecordVersion},
		{"bare legacy record", `{"id":"t1","status":"processing"}`, domain.ErrRecordVersion},
		{"missing id", `{"v":1,"task":{"status":"pending"}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(tt.data))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestEncodeRecord_KeepsPayloadOpaque(t *testing.T) {
	task := newTask("t1")
	task.Data = json.RawMessage(`{"period":"2026-02","lines":[1,2]}`)

	data, err := EncodeRecord(task)
	require.NoError(t, err)
	got, err := DecodeRecord(data)
	require.NoError(t, err)

	assert.JSONEq(t, string(task.Data), string(got.Data))
	assert.True(t, task.StartTime.Equal(got.StartTime))
}

func TestMirror_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	m := NewMirror(memory.NewStore())

	_, found, err := m.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	task := newTask("t1")
	task.Status = domain.StatusProcessing
	require.NoError(t, m.Save(ctx, task))

	got, found, err := m.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, domain.StatusProcessing, got.Status)

	require.NoError(t, m.Clear(ctx))
	_, found, err = m.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMirror_LoadCorruptRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, CurrentTaskKey, []byte("garbage")))

	_, found, err := NewMirror(store).Load(ctx)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestMirror_ForceStoppedMarkerIsConsumedOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMirror(memory.NewStore())

	stopped, err := m.ConsumeForceStopped(ctx)
	require.NoError(t, err)
	assert.False(t, stopped)

	require.NoError(t, m.MarkForceStopped(ctx))

	stopped, err = m.ConsumeForceStopped(ctx)
	require.NoError(t, err)
	assert.True(t, stopped)

	stopped, err = m.ConsumeForceStopped(ctx)
	require.NoError(t, err)
	assert.False(t, stopped)
}
