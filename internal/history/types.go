package history

import "github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"

// Status is the outcome of an execute-mode apply.
type Status string

const (
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
)

// Entry records one apply attempt against the media server.
type Entry struct {
	ID             int64        `json:"id"`
	SuggestionID   string       `json:"suggestion_id"`
	Kind           suggest.Kind `json:"suggestion_type"`
	Title          string       `json:"title"`
	CollectionName string       `json:"collection_name,omitempty"`
	CollectionID   string       `json:"collection_id,omitempty"`
	ItemCount      int          `json:"item_count"`
	Status         Status       `json:"status"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      int64        `json:"created_at"`
}

// CreateInput contains fields for creating a history entry.
type CreateInput struct {
	SuggestionID   string
	Kind           suggest.Kind
	Title          string
	CollectionName string
	CollectionID   string
	ItemCount      int
	Status         Status
	Error          string
}

// ListOptions contains options for listing history.
type ListOptions struct {
	Status       Status
	SuggestionID string
	Page         int
	PageSize     int
}

// ListResponse is a page of history entries.
type ListResponse struct {
	Items      []Entry `json:"items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalCount int64   `json:"total_count"`
	TotalPages int     `json:"total_pages"`
}
