package progress

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Type     string
	Activity Activity
}

type fakeHub struct {
	mu     sync.Mutex
	events []event
}

func (h *fakeHub) Broadcast(msgType string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event{Type: msgType, Activity: payload.(Activity)})
	return nil
}

func TestManager_Lifecycle(t *testing.T) {
	hub := &fakeHub{}
	m := NewManager(hub, zerolog.Nop())

	m.StartActivity("scan", ActivityTypeScan, "Library scan")
	m.UpdateActivity("scan", "Fetching items", 25)
	m.SetMetadata("scan", "items", 12)
	m.CompleteActivity("scan", "12 items, 4 suggestions")

	require.Len(t, hub.events, 3)
	assert.Equal(t, string(EventTypeStarted), hub.events[0].Type)
	assert.Equal(t, 25, hub.events[1].Activity.Progress)
	assert.Equal(t, string(EventTypeCompleted), hub.events[2].Type)
	assert.Equal(t, 100, hub.events[2].Activity.Progress)
	assert.Equal(t, 12, hub.events[2].Activity.Metadata["items"])

	a, ok := m.GetActivity("scan")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, a.Status)
	assert.NotNil(t, a.CompletedAt)
}

func TestManager_FailAndCancel(t *testing.T) {
	hub := &fakeHub{}
	m := NewManager(hub, zerolog.Nop())

	m.StartActivity("apply-1", ActivityTypeApply, "Apply")
	m.FailActivity("apply-1", "jellyfin unreachable")

	a, ok := m.GetActivity("apply-1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, a.Status)
	assert.Equal(t, "jellyfin unreachable", a.Metadata["error"])

	m.StartActivity("scan", ActivityTypeScan, "Library scan")
	m.CancelActivity("scan")
	_, ok = m.GetActivity("scan")
	assert.False(t, ok)
	assert.Equal(t, string(EventTypeCancelled), hub.events[len(hub.events)-1].Type)
}

func TestManager_UnknownActivityIsIgnored(t *testing.T) {
	hub := &fakeHub{}
	m := NewManager(hub, zerolog.Nop())

	m.UpdateActivity("missing", "x", 10)
	m.CompleteActivity("missing", "done")

	assert.Empty(t, hub.events)
	assert.Empty(t, m.GetAllActivities())
}

func TestManager_NilHub(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())
	m.StartActivity("scan", ActivityTypeScan, "Library scan")
	assert.Len(t, m.GetAllActivities(), 1)
}
