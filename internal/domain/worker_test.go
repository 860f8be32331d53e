package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerState_String(t *testing.T) {
	assert.Equal(t, "running", WorkerStateRunning.String())
	assert.Equal(t, "stopped", WorkerStateStopped.String())
}

func TestWorkerState_IsRunning(t *testing.T) {
	assert.True(t, WorkerStateRunning.IsRunning())
	assert.False(t, WorkerStateStopped.IsRunning())
}

func TestWorkerInfo_UptimeSeconds(t *testing.T) {
	t.Run("zero when not started", func(t *testing.T) {
		info := WorkerInfo{}
		assert.Equal(t, int64(0), info.UptimeSeconds())
	})

	t.Run("zero when stopped", func(t *testing.T) {
		info := WorkerInfo{
			State:     WorkerStateStopped,
			StartedAt: time.Now().Add(-10 * time.Second),
		}
		assert.Equal(t, int64(0), info.UptimeSeconds())
	})

	t.Run("calculates uptime", func(t *testing.T) {
		info := WorkerInfo{
			State:     WorkerStateRunning,
			StartedAt: time.Now().Add(-10 * time.Second),
		}
		uptime := info.UptimeSeconds()
		assert.GreaterOrEqual(t, uptime, int64(9))
		assert.LessOrEqual(t, uptime, int64(11))
	})
}

func TestWorkerInfo_Restarts(t *testing.T) {
	tests := []struct {
		launches int
		want     int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{5, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WorkerInfo{Launches: tt.launches}.Restarts())
	}
}
