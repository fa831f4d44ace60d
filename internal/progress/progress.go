// Package progress broadcasts the state of long-running work, library
// scans and suggestion applies, to connected WebSocket clients.
package progress

import (
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ActivityType identifies the type of activity being tracked.
type ActivityType string

const (
	ActivityTypeScan  ActivityType = "scan"
	ActivityTypeApply ActivityType = "apply"
)

// Status represents the current state of an activity.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Activity represents a trackable activity with progress.
type Activity struct {
	ID          string         `json:"id"`
	Type        ActivityType   `json:"type"`
	Title       string         `json:"title"`
	Subtitle    string         `json:"subtitle"` // current phase
	Progress    int            `json:"progress"` // 0-100, -1 for indeterminate
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	Metadata    map[string]any `json:"metadata"`
}

// EventType identifies the type of progress event.
type EventType string

const (
	EventTypeStarted   EventType = "progress:started"
	EventTypeUpdate    EventType = "progress:update"
	EventTypeCompleted EventType = "progress:completed"
	EventTypeError     EventType = "progress:error"
	EventTypeCancelled EventType = "progress:cancelled"
)

// Broadcaster delivers events to clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

// Finished activities stay visible for a while so late subscribers can
// still fetch the outcome.
const (
	completedRetention = 5 * time.Second
	failedRetention    = 10 * time.Second
)

// Manager tracks and broadcasts progress for all activities.
type Manager struct {
	hub        Broadcaster
	activities map[string]*Activity
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewManager creates a new progress manager. hub may be nil.
func NewManager(hub Broadcaster, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:        hub,
		activities: make(map[string]*Activity),
		logger:     logger.With().Str("component", "progress").Logger(),
	}
}

// StartActivity creates and starts tracking a new activity.
func (m *Manager) StartActivity(id string, activityType ActivityType, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity := &Activity{
		ID:        id,
		Type:      activityType,
		Title:     title,
		Subtitle:  "Starting...",
		Status:    StatusInProgress,
		StartedAt: time.Now(),
		Metadata:  make(map[string]any),
	}

	m.activities[id] = activity
	m.broadcast(EventTypeStarted, activity)

	m.logger.Debug().
		Str("id", id).
		Str("type", string(activityType)).
		Str("title", title).
		Msg("Activity started")
}

// UpdateActivity updates an existing activity's progress.
func (m *Manager) UpdateActivity(id, subtitle string, progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, exists := m.activities[id]
	if !exists {
		return
	}

	activity.Subtitle = subtitle
	activity.Progress = progress

	m.broadcast(EventTypeUpdate, activity)
}

// SetMetadata attaches a value to an activity without broadcasting.
func (m *Manager) SetMetadata(id, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if activity, exists := m.activities[id]; exists {
		activity.Metadata[key] = value
	}
}

// CompleteActivity marks an activity as completed.
func (m *Manager) CompleteActivity(id, subtitle string) {
	m.finish(id, StatusCompleted, subtitle, EventTypeCompleted, completedRetention)
}

// FailActivity marks an activity as failed.
func (m *Manager) FailActivity(id, errorMsg string) {
	m.finish(id, StatusFailed, errorMsg, EventTypeError, failedRetention)
}

// CancelActivity marks an activity as cancelled and stops tracking it.
func (m *Manager) CancelActivity(id string) {
	m.finish(id, StatusCancelled, "Cancelled", EventTypeCancelled, 0)
}

func (m *Manager) finish(id string, status Status, subtitle string, event EventType, keep time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, exists := m.activities[id]
	if !exists {
		return
	}

	now := time.Now()
	activity.Status = status
	activity.Subtitle = subtitle
	activity.CompletedAt = &now
	switch status {
	case StatusCompleted:
		activity.Progress = 100
	case StatusFailed:
		activity.Metadata["error"] = subtitle
	}

	m.broadcast(event, activity)

	if keep <= 0 {
		delete(m.activities, id)
	} else {
		time.AfterFunc(keep, func() { m.forget(id, activity) })
	}

	m.logger.Debug().
		Str("id", id).
		Str("title", activity.Title).
		Str("status", string(status)).
		Msg("Activity finished")
}

// forget drops id unless it has been restarted since.
func (m *Manager) forget(id string, activity *Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activities[id] == activity {
		delete(m.activities, id)
	}
}

// GetActivity returns a copy of an activity by ID.
func (m *Manager) GetActivity(id string) (Activity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.activities[id]
	if !ok {
		return Activity{}, false
	}
	return snapshot(a), true
}

// GetAllActivities returns all tracked activities, oldest first.
func (m *Manager) GetAllActivities() []Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Activity, 0, len(m.activities))
	for _, a := range m.activities {
		result = append(result, snapshot(a))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

func snapshot(a *Activity) Activity {
	c := *a
	c.Metadata = maps.Clone(a.Metadata)
	return c
}

// broadcast sends an activity update to all connected clients.
// Callers hold m.mu.
func (m *Manager) broadcast(eventType EventType, activity *Activity) {
	if m.hub == nil {
		return
	}
	if err := m.hub.Broadcast(string(eventType), snapshot(activity)); err != nil {
		m.logger.Debug().Err(err).Str("event", string(eventType)).Msg("Dropped progress event")
	}
}
