// Package history keeps a permanent ledger of suggestions applied to the
// media server. Suggestions are replaced on every scan; this ledger is not.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service provides history management functionality.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
		now:    time.Now,
	}
}

// Create records an apply outcome.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Entry, error) {
	entry := &Entry{
		SuggestionID:   input.SuggestionID,
		Kind:           input.Kind,
		Title:          input.Title,
		CollectionName: input.CollectionName,
		CollectionID:   input.CollectionID,
		ItemCount:      input.ItemCount,
		Status:         input.Status,
		Error:          input.Error,
		CreatedAt:      s.now().Unix(),
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO applications (suggestion_id, suggestion_type, title, collection_name,
                          collection_id, item_count, status, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SuggestionID, string(entry.Kind), entry.Title, entry.CollectionName,
		entry.CollectionID, entry.ItemCount, string(entry.Status), entry.Error, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create history entry: %w", err)
	}

	if entry.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("create history entry: %w", err)
	}
	return entry, nil
}

// List lists history entries, newest first, with pagination and filtering.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	const where = `WHERE (? = '' OR status = ?) AND (? = '' OR suggestion_id = ?)`
	args := []any{string(opts.Status), string(opts.Status), opts.SuggestionID, opts.SuggestionID}

	var totalCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications `+where, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, suggestion_id, suggestion_type, title, collection_name, collection_id,
       item_count, status, error, created_at
FROM applications `+where+`
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`,
		append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, opts.PageSize)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SuggestionID, &e.Kind, &e.Title, &e.CollectionName,
			&e.CollectionID, &e.ItemCount, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int(totalCount) / opts.PageSize
	if int(totalCount)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      entries,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}, nil
}

// DeleteAll deletes all history entries.
func (s *Service) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM applications`); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// Prune deletes entries older than retention and returns how many went.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Dur("retention", retention).Msg("Pruned history")
	}
	return n, nil
}
