package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return New(tdb.Conn, tdb.Logger)
}

func sampleSuggestions() []suggest.Suggestion {
	return []suggest.Suggestion{
		{
			ID: "low", Kind: suggest.KindTag, Title: "Length: Standard (76–110m)", Confidence: 0.80,
			ItemIDs: []string{"a", "b"}, Reason: "runtime-based",
			Payload: suggest.Payload{Tag: "length:standard"}, CreatedAt: 100,
		},
		{
			ID: "old", Kind: suggest.KindCollection, Title: "Rocky", Confidence: 0.85,
			ItemIDs: []string{"a", "b", "c"}, Reason: "title sequel pattern (2/II/Part 2, subtitles)",
			Payload: suggest.Payload{CollectionName: "Rocky"}, CreatedAt: 100,
		},
		{
			ID: "new", Kind: suggest.KindCollection, Title: "Alien", Confidence: 0.85,
			ItemIDs: []string{"d", "e"}, Reason: "title sequel pattern (2/II/Part 2, subtitles)",
			Payload: suggest.Payload{CollectionName: "Alien"}, CreatedAt: 200,
		},
	}
}

func TestStore_Items(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	items := []media.Item{
		{
			ID: "1", Name: "Rocky", ProductionYear: 1976, RunTimeTicks: 119 * 60 * media.TicksPerSecond,
			Genres: media.NameList{"Drama"}, Studios: media.NameList{"United Artists"},
			ProviderIDs: map[string]string{"Tmdb": "1366"}, CommunityRating: 7.7, OfficialRating: "PG",
		},
		{ID: "", Name: "No identifier"},
	}

	n, err := s.UpsertItems(ctx, items, time.Unix(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	items[0].Name = "Rocky (1976)"
	_, err = s.UpsertItems(ctx, items[:1], time.Unix(2000, 0))
	require.NoError(t, err)

	count, err := s.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Rocky (1976)", stored[0].Name)
	assert.Equal(t, 1976, stored[0].ProductionYear)
	assert.Equal(t, media.NameList{"Drama"}, stored[0].Genres)
	assert.Equal(t, "1366", stored[0].ProviderIDs["Tmdb"])
	assert.Equal(t, 119, stored[0].RuntimeMinutes())
	assert.Empty(t, stored[0].Tags)
}

func TestStore_ListSuggestionsOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.ReplaceSuggestions(ctx, sampleSuggestions()))

	got, err := s.ListSuggestions(ctx, ListOptions{})
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, sg := range got {
		ids[i] = sg.ID
	}
	assert.Equal(t, []string{"new", "old", "low"}, ids)
	assert.Equal(t, suggest.Payload{CollectionName: "Alien"}, got[0].Payload)

	tags, err := s.ListSuggestions(ctx, ListOptions{Kind: suggest.KindTag})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "length:standard", tags[0].Payload.Tag)
}

func TestStore_ReplaceDiscardsPrevious(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.ReplaceSuggestions(ctx, sampleSuggestions()))
	applied, err := s.MarkApplied(ctx, "old", "coll-1")
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, s.ReplaceSuggestions(ctx, sampleSuggestions()[:1]))

	_, err = s.GetSuggestion(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.ListSuggestions(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_MarkApplied(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.ReplaceSuggestions(ctx, sampleSuggestions()))

	applied, err := s.MarkApplied(ctx, "new", "coll-9")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.MarkApplied(ctx, "new", "coll-10")
	require.NoError(t, err)
	assert.False(t, applied, "second mark is a no-op")

	sg, err := s.GetSuggestion(ctx, "new")
	require.NoError(t, err)
	assert.True(t, sg.Applied)
	assert.Equal(t, "coll-9", sg.AppliedCollectionID)

	_, err = s.MarkApplied(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	pending, err := s.ListSuggestions(ctx, ListOptions{Pending: true})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Items: 0, Suggestions: 3, Applied: 1}, st)
}

func TestStore_GetSuggestionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSuggestion(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
