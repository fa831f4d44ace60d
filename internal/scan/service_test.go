package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/media"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/progress"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/store"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/testutil"
)

type fakeSource struct {
	items   []media.Item
	err     error
	release chan struct{}
}

func (f *fakeSource) FetchMovies(ctx context.Context) ([]media.Item, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) Broadcast(msgType string, _ any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, msgType)
	return nil
}

func rockyItems() []media.Item {
	return []media.Item{
		{ID: "1", Name: "Rocky"},
		{ID: "2", Name: "Rocky II"},
		{ID: "3", Name: "Rocky III"},
	}
}

func newTestService(t *testing.T, src Source) (*Service, *store.Store) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	st := store.New(tdb.Conn, zerolog.Nop())
	opts := suggest.Options{MinGroupSize: 2, EnableFranchise: true}
	svc := NewService(src, st, suggest.NewEngine(opts, zerolog.Nop()), true, zerolog.Nop())
	return svc, st
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &fakeSource{items: rockyItems()})
	hub := &recordingHub{}
	svc.SetProgress(progress.NewManager(hub, zerolog.Nop()))

	res, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Items: 3, Suggestions: 1, DryRun: true}, res)

	count, err := st.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	stored, err := st.ListSuggestions(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Rocky", stored[0].Title)

	assert.Equal(t, string(progress.EventTypeStarted), hub.events[0])
	assert.Equal(t, string(progress.EventTypeCompleted), hub.events[len(hub.events)-1])

	last, ok := svc.Last()
	require.True(t, ok)
	assert.Equal(t, res, last.Result)
	assert.Empty(t, last.Error)
}

func TestService_RescanReplacesAppliedSuggestions(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &fakeSource{items: rockyItems()})

	_, err := svc.Run(ctx)
	require.NoError(t, err)
	first, err := st.ListSuggestions(ctx, store.ListOptions{})
	require.NoError(t, err)
	_, err = st.MarkApplied(ctx, first[0].ID, "coll-1")
	require.NoError(t, err)

	_, err = svc.Run(ctx)
	require.NoError(t, err)

	second, err := st.ListSuggestions(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.False(t, second[0].Applied)
}

func TestService_FetchFailureKeepsSuggestions(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{items: rockyItems()}
	svc, st := newTestService(t, src)

	_, err := svc.Run(ctx)
	require.NoError(t, err)

	src.err = errors.New("connection refused")
	_, err = svc.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch library")

	stored, err := st.ListSuggestions(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	last, ok := svc.Last()
	require.True(t, ok)
	assert.NotEmpty(t, last.Error)
}

func TestService_RejectsConcurrentScan(t *testing.T) {
	src := &fakeSource{items: rockyItems(), release: make(chan struct{})}
	svc, _ := newTestService(t, src)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, svc.Running, time.Second, 5*time.Millisecond)
	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(src.release)
	require.NoError(t, <-done)
	assert.False(t, svc.Running())
}

func TestService_Cancelled(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	svc, _ := newTestService(t, src)
	hub := &recordingHub{}
	svc.SetProgress(progress.NewManager(hub, zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, string(progress.EventTypeCancelled), hub.events[len(hub.events)-1])
}
