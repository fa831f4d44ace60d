package apply

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/history"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/jellyfin"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/progress"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/store"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/suggest"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/testutil"
)

type fakeSink struct {
	mu        sync.Mutex
	created   []string
	added     map[string][]string
	createErr error
	addErr    error
	delay     time.Duration
	calls     atomic.Int32
	started   chan struct{}
}

func (f *fakeSink) CreateCollection(ctx context.Context, name string) (string, error) {
	if f.calls.Add(1) == 1 && f.started != nil {
		close(f.started)
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	return "coll-" + name, nil
}

func (f *fakeSink) AddItemsToCollection(_ context.Context, collectionID string, itemIDs []string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.added == nil {
		f.added = make(map[string][]string)
	}
	f.added[collectionID] = itemIDs
	return nil
}

type fakeReporter struct {
	mu     sync.Mutex
	events []string
}

func (r *fakeReporter) StartActivity(id string, _ progress.ActivityType, _ string) {
	r.add("start:" + id)
}
func (r *fakeReporter) UpdateActivity(id, _ string, _ int) { r.add("update:" + id) }
func (r *fakeReporter) CompleteActivity(id, _ string)      { r.add("complete:" + id) }
func (r *fakeReporter) FailActivity(id, _ string)          { r.add("fail:" + id) }

func (r *fakeReporter) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type fixture struct {
	svc      *Service
	store    *store.Store
	history  *history.Service
	sink     *fakeSink
	reporter *fakeReporter
}

func newFixture(t *testing.T, suggestions ...suggest.Suggestion) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	st := store.New(tdb.Conn, zerolog.Nop())
	require.NoError(t, st.ReplaceSuggestions(context.Background(), suggestions))

	f := &fixture{
		store:    st,
		history:  history.NewService(tdb.Conn, zerolog.Nop()),
		sink:     &fakeSink{},
		reporter: &fakeReporter{},
	}
	f.svc = NewService(st, f.sink, zerolog.Nop())
	f.svc.SetHistory(f.history)
	f.svc.SetProgress(f.reporter)
	return f
}

var (
	rocky = suggest.Suggestion{
		ID: "rocky", Kind: suggest.KindCollection, Title: "Rocky", Confidence: 0.85,
		ItemIDs: []string{"1", "2", "3"}, Payload: suggest.Payload{CollectionName: "Rocky"}, CreatedAt: 1,
	}
	pixar = suggest.Suggestion{
		ID: "pixar", Kind: suggest.KindTag, Title: "Studio: Pixar", Confidence: 0.95,
		ItemIDs: []string{"4", "5"}, Payload: suggest.Payload{Tag: "studio:pixar"}, CreatedAt: 1,
	}
	bogus = suggest.Suggestion{
		ID: "bogus", Kind: suggest.Kind("playlist"), Title: "Weird", Confidence: 0.5,
		ItemIDs: []string{"1"}, CreatedAt: 1,
	}
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("", true)
	require.NoError(t, err)
	assert.Equal(t, ModePreview, m)

	m, err = ParseMode("", false)
	require.NoError(t, err)
	assert.Equal(t, ModeExecute, m)

	m, err = ParseMode("execute", true)
	require.NoError(t, err)
	assert.Equal(t, ModeExecute, m)

	_, err = ParseMode("yolo", true)
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestApply_NotFound(t *testing.T) {
	f := newFixture(t, rocky)
	_, err := f.svc.Apply(context.Background(), "missing", ModeExecute)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApply_PreviewCollection(t *testing.T) {
	f := newFixture(t, rocky)

	res, err := f.svc.Apply(context.Background(), "rocky", ModePreview)
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true, DryRun: true, WouldCreateCollection: "Rocky", WouldAddItems: 3}, res)

	sg, err := f.store.GetSuggestion(context.Background(), "rocky")
	require.NoError(t, err)
	assert.False(t, sg.Applied, "preview never changes state")
	assert.Zero(t, f.sink.calls.Load())
}

func TestApply_PreviewTagAddsNote(t *testing.T) {
	f := newFixture(t, pixar)

	res, err := f.svc.Apply(context.Background(), "pixar", ModePreview)
	require.NoError(t, err)
	assert.Equal(t, "Studio: Pixar", res.WouldCreateCollection)
	assert.Equal(t, TagAsCollectionNote, res.Note)
}

func TestApply_UnsupportedKind(t *testing.T) {
	f := newFixture(t, bogus)

	for _, mode := range []Mode{ModePreview, ModeExecute} {
		_, err := f.svc.Apply(context.Background(), "bogus", mode)
		assert.ErrorIs(t, err, ErrUnsupportedKind, mode)
	}
	assert.Zero(t, f.sink.calls.Load())
}

func TestApply_ExecuteTagAsCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pixar)

	res, err := f.svc.Apply(ctx, "pixar", ModeExecute)
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true, CollectionID: "coll-Studio: Pixar", AddedItems: 2}, res)
	assert.Equal(t, []string{"4", "5"}, f.sink.added["coll-Studio: Pixar"])

	sg, err := f.store.GetSuggestion(ctx, "pixar")
	require.NoError(t, err)
	assert.True(t, sg.Applied)
	assert.Equal(t, "coll-Studio: Pixar", sg.AppliedCollectionID)

	ledger, err := f.history.List(ctx, history.ListOptions{})
	require.NoError(t, err)
	require.Len(t, ledger.Items, 1)
	assert.Equal(t, history.StatusApplied, ledger.Items[0].Status)
	assert.Equal(t, 2, ledger.Items[0].ItemCount)

	assert.Equal(t, []string{"start:apply-pixar", "update:apply-pixar", "complete:apply-pixar"}, f.reporter.events)
}

func TestApply_AlreadyApplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rocky)

	_, err := f.svc.Apply(ctx, "rocky", ModeExecute)
	require.NoError(t, err)

	for _, mode := range []Mode{ModeExecute, ModePreview} {
		res, err := f.svc.Apply(ctx, "rocky", mode)
		require.NoError(t, err)
		assert.Equal(t, Result{OK: true, AlreadyApplied: true, AppliedCollectionID: "coll-Rocky"}, res)
	}
	assert.Equal(t, int32(1), f.sink.calls.Load(), "collection created once")
}

func TestApply_CreateFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rocky)
	f.sink.createErr = &jellyfin.StatusError{Op: "create collection", StatusCode: http.StatusInternalServerError, Body: "boom"}

	res, err := f.svc.Apply(ctx, "rocky", ModeExecute)
	require.ErrorIs(t, err, ErrApplyFailed)
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "boom", res.Body)
	assert.NotEmpty(t, res.Error)

	sg, err := f.store.GetSuggestion(ctx, "rocky")
	require.NoError(t, err)
	assert.False(t, sg.Applied)

	ledger, err := f.history.List(ctx, history.ListOptions{Status: history.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, ledger.Items, 1)
	assert.Contains(t, f.reporter.events, "fail:apply-rocky")
}

func TestApply_NoCollectionIDLeavesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rocky)
	f.sink.createErr = jellyfin.ErrNoCollectionID

	_, err := f.svc.Apply(ctx, "rocky", ModeExecute)
	require.ErrorIs(t, err, ErrApplyFailed)
	assert.ErrorIs(t, err, jellyfin.ErrNoCollectionID)

	sg, err := f.store.GetSuggestion(ctx, "rocky")
	require.NoError(t, err)
	assert.False(t, sg.Applied)
}

func TestApply_AttachFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rocky)
	f.sink.addErr = errors.New("connection reset")

	res, err := f.svc.Apply(ctx, "rocky", ModeExecute)
	require.ErrorIs(t, err, ErrApplyFailed)
	assert.Equal(t, "coll-Rocky", res.CollectionID, "orphaned collection is reported")

	sg, err := f.store.GetSuggestion(ctx, "rocky")
	require.NoError(t, err)
	assert.False(t, sg.Applied)
	assert.Empty(t, sg.AppliedCollectionID)
}

func TestApply_ConcurrentExecuteCreatesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rocky)
	f.sink.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Go(func() {
			res, err := f.svc.Apply(ctx, "rocky", ModeExecute)
			assert.NoError(t, err)
			results[i] = res
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.sink.calls.Load())
	for _, res := range results {
		assert.True(t, res.OK)
		id := res.CollectionID
		if res.AlreadyApplied {
			id = res.AppliedCollectionID
		}
		assert.Equal(t, "coll-Rocky", id)
	}
}

func TestApply_SharedAttemptSurvivesFirstCallerCancel(t *testing.T) {
	f := newFixture(t, rocky)
	f.sink.delay = 100 * time.Millisecond
	f.sink.started = make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := f.svc.Apply(firstCtx, "rocky", ModeExecute)
		firstDone <- err
	}()

	<-f.sink.started
	secondDone := make(chan Result, 1)
	go func() {
		res, err := f.svc.Apply(context.Background(), "rocky", ModeExecute)
		assert.NoError(t, err)
		secondDone <- res
	}()
	cancelFirst()

	require.NoError(t, <-firstDone)
	res := <-secondDone
	assert.True(t, res.OK)

	sg, err := f.store.GetSuggestion(context.Background(), "rocky")
	require.NoError(t, err)
	assert.True(t, sg.Applied)
	assert.Equal(t, int32(1), f.sink.calls.Load())
}

func TestApply_AttemptTimeout(t *testing.T) {
	f := newFixture(t, rocky)
	f.sink.delay = time.Second
	f.svc.SetTimeout(20 * time.Millisecond)

	res, err := f.svc.Apply(context.Background(), "rocky", ModeExecute)
	require.ErrorIs(t, err, ErrApplyFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, res.OK)

	sg, err := f.store.GetSuggestion(context.Background(), "rocky")
	require.NoError(t, err)
	assert.False(t, sg.Applied)

	ledger, err := f.history.List(context.Background(), history.ListOptions{})
	require.NoError(t, err)
	require.Len(t, ledger.Items, 1)
	assert.Equal(t, history.StatusFailed, ledger.Items[0].Status)
}
