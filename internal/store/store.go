// Package store persists the library snapshot and the suggestions
// generated from it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
)

var ErrNotFound = errors.New("suggestion not found")

// Store is the SQLite-backed suggestion store.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New creates a store over an already migrated database.
func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// ListOptions filters ListSuggestions.
type ListOptions struct {
	Kind    suggest.Kind // empty for all kinds
	Pending bool         // only suggestions not yet applied
}

const upsertItemSQL = `
INSERT INTO items (id, name, year, path, provider_ids, genres, tags, studios,
                   runtime_ticks, rating, official_rating, overview, taglines, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    year = excluded.year,
    path = excluded.path,
    provider_ids = excluded.provider_ids,
    genres = excluded.genres,
    tags = excluded.tags,
    studios = excluded.studios,
    runtime_ticks = excluded.runtime_ticks,
    rating = excluded.rating,
    official_rating = excluded.official_rating,
    overview = excluded.overview,
    taglines = excluded.taglines,
    updated_at = excluded.updated_at`

// UpsertItems records the latest metadata for each item. Items without an
// identifier are skipped.
func (s *Store) UpsertItems(ctx context.Context, items []media.Item, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert items: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertItemSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert items: %w", err)
	}
	defer stmt.Close()

	n := 0
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			it.ID,
			it.Name,
			nullInt(int64(it.ProductionYear)),
			nullString(it.Path),
			mustJSON(nonNilMap(it.ProviderIDs)),
			mustJSON(nonNil(it.Genres)),
			mustJSON(nonNil(it.Tags)),
			mustJSON(nonNil(it.Studios)),
			it.RunTimeTicks,
			nullFloat(it.CommunityRating),
			it.OfficialRating,
			it.Overview,
			mustJSON(nonNil(it.Taglines)),
			now.Unix(),
		); err != nil {
			return n, fmt.Errorf("upsert item %s: %w", it.ID, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert items: %w", err)
	}
	return n, nil
}

// ListItems returns the stored library snapshot ordered by name.
func (s *Store) ListItems(ctx context.Context) ([]media.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, year, path, provider_ids, genres, tags, studios,
       runtime_ticks, rating, official_rating, overview, taglines
FROM items ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []media.Item
	for rows.Next() {
		var (
			it                                          media.Item
			year                                        sql.NullInt64
			path                                        sql.NullString
			rating                                      sql.NullFloat64
			providerIDs, genres, tags, studios, tagline string
		)
		if err := rows.Scan(&it.ID, &it.Name, &year, &path, &providerIDs, &genres, &tags, &studios,
			&it.RunTimeTicks, &rating, &it.OfficialRating, &it.Overview, &tagline); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.ProductionYear = int(year.Int64)
		it.Path = path.String
		it.CommunityRating = rating.Float64
		s.decode(providerIDs, &it.ProviderIDs, it.ID)
		s.decode(genres, &it.Genres, it.ID)
		s.decode(tags, &it.Tags, it.ID)
		s.decode(studios, &it.Studios, it.ID)
		s.decode(tagline, &it.Taglines, it.ID)
		out = append(out, it)
	}
	return out, rows.Err()
}

// CountItems returns the number of stored items.
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// ReplaceSuggestions atomically discards every stored suggestion, applied
// or not, and stores the new set.
func (s *Store) ReplaceSuggestions(ctx context.Context, suggestions []suggest.Suggestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace suggestions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM suggestions`); err != nil {
		return fmt.Errorf("clear suggestions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO suggestions (suggestion_id, suggestion_type, title, confidence, item_ids,
                         reason, payload, created_at, applied, applied_collection_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert suggestion: %w", err)
	}
	defer stmt.Close()

	for i := range suggestions {
		sg := &suggestions[i]
		if _, err := stmt.ExecContext(ctx,
			sg.ID,
			string(sg.Kind),
			sg.Title,
			sg.Confidence,
			mustJSON(nonNil(sg.ItemIDs)),
			sg.Reason,
			mustJSON(sg.Payload),
			sg.CreatedAt,
			boolInt(sg.Applied),
			nullString(sg.AppliedCollectionID),
		); err != nil {
			return fmt.Errorf("insert suggestion %s: %w", sg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace suggestions: %w", err)
	}

	s.logger.Debug().Int("suggestions", len(suggestions)).Msg("Replaced suggestions")
	return nil
}

const selectSuggestion = `
SELECT suggestion_id, suggestion_type, title, confidence, item_ids, reason,
       payload, created_at, applied, applied_collection_id
FROM suggestions`

// ListSuggestions returns stored suggestions, highest confidence first and
// newest first among equals.
func (s *Store) ListSuggestions(ctx context.Context, opts ListOptions) ([]suggest.Suggestion, error) {
	query := selectSuggestion + `
WHERE (? = '' OR suggestion_type = ?) AND (? = 0 OR applied = 0)
ORDER BY confidence DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, string(opts.Kind), string(opts.Kind), boolInt(opts.Pending))
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	out := []suggest.Suggestion{}
	for rows.Next() {
		sg, err := s.scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// GetSuggestion returns a single suggestion or ErrNotFound.
func (s *Store) GetSuggestion(ctx context.Context, id string) (suggest.Suggestion, error) {
	row := s.db.QueryRowContext(ctx, selectSuggestion+` WHERE suggestion_id = ?`, id)
	sg, err := s.scanSuggestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return suggest.Suggestion{}, ErrNotFound
	}
	return sg, err
}

// MarkApplied records that a suggestion produced collectionID. It reports
// false, leaving the row untouched, if the suggestion was already applied.
func (s *Store) MarkApplied(ctx context.Context, id, collectionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE suggestions SET applied = 1, applied_collection_id = ? WHERE suggestion_id = ? AND applied = 0`,
		collectionID, id)
	if err != nil {
		return false, fmt.Errorf("mark suggestion %s applied: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark suggestion %s applied: %w", id, err)
	}
	if n == 0 {
		if _, err := s.GetSuggestion(ctx, id); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

// Stats summarizes the stored suggestions.
type Stats struct {
	Items       int `json:"items"`
	Suggestions int `json:"suggestions"`
	Applied     int `json:"applied"`
}

// Stats counts items and suggestions.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM items),
       (SELECT COUNT(*) FROM suggestions),
       (SELECT COUNT(*) FROM suggestions WHERE applied = 1)`).Scan(&st.Items, &st.Suggestions, &st.Applied)
	if err != nil {
		return Stats{}, fmt.Errorf("suggestion stats: %w", err)
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSuggestion(row scanner) (suggest.Suggestion, error) {
	var (
		sg           suggest.Suggestion
		kind         string
		itemIDs      string
		payload      string
		applied      int
		collectionID sql.NullString
	)
	if err := row.Scan(&sg.ID, &kind, &sg.Title, &sg.Confidence, &itemIDs, &sg.Reason,
		&payload, &sg.CreatedAt, &applied, &collectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sg, err
		}
		return sg, fmt.Errorf("scan suggestion: %w", err)
	}
	sg.Kind = suggest.Kind(kind)
	sg.Applied = applied != 0
	sg.AppliedCollectionID = collectionID.String
	s.decode(itemIDs, &sg.ItemIDs, sg.ID)
	s.decode(payload, &sg.Payload, sg.ID)
	if sg.ItemIDs == nil {
		sg.ItemIDs = []string{}
	}
	return sg, nil
}

// decode unmarshals a JSON column, logging rather than failing on bad data.
func (s *Store) decode(data string, v any, id string) {
	if data == "" {
		return
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("Ignoring malformed JSON column")
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v != 0}
}
