package radio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/domain/song"
)

// fakeQueue is an in-memory Queue.
type fakeQueue struct {
	mu       sync.Mutex
	items    []media.Item
	enqueues int
}

func newFakeQueue(ids ...string) *fakeQueue {
	return &fakeQueue{items: testItems(ids...)}
}

func (q *fakeQueue) GetQueue() []media.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]media.Item, len(q.items))
	copy(out, q.items)
	return out
}

func (q *fakeQueue) Enqueue(items ...media.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	q.enqueues++
}

func (q *fakeQueue) snapshot() ([]media.Item, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]media.Item, len(q.items))
	copy(out, q.items)
	return out, q.enqueues
}

func testItems(ids ...string) []media.Item {
	items := make([]media.Item, len(ids))
	for i, id := range ids {
		items[i] = media.Item{ID: id, Title: "Title " + id, Artists: []string{"Artist " + id}, Source: media.SourceUser}
	}
	return items
}

func candidates(name string, ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, it := range testItems(ids...) {
		out[i] = Candidate{Item: it, DisplayName: name}
	}
	return out
}

// stubSource answers every call with the configured result.
type stubSource struct {
	mu    sync.Mutex
	calls int
	reqs  []Request
	conts []Continuation
	fn    func(call int) ([]Candidate, error)
}

func (s *stubSource) Next(ctx context.Context, req Request, cont Continuation) ([]Candidate, Continuation, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.reqs = append(s.reqs, req)
	s.conts = append(s.conts, cont)
	s.mu.Unlock()

	out, err := s.fn(call)
	next := cont.Clone()
	next.Tokens["stub"] = fmt.Sprintf("page-%d", call)
	return out, next, err
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// blockingSource blocks each call until released, ignoring cancellation,
// so tests can race a result against Stop and Setup.
type blockingSource struct {
	started chan context.Context
	release chan struct{}
	calls   atomic.Int32
	ids     []string
	err     error
}

func newBlockingSource(ids ...string) *blockingSource {
	return &blockingSource{
		started: make(chan context.Context, 8),
		release: make(chan struct{}),
		ids:     ids,
	}
}

func (b *blockingSource) Next(ctx context.Context, req Request, cont Continuation) ([]Candidate, Continuation, error) {
	b.calls.Add(1)
	b.started <- ctx
	<-b.release
	if b.err != nil {
		return nil, cont, b.err
	}
	return candidates("blocking", b.ids...), cont, nil
}

func waitStarted(t *testing.T, b *blockingSource) context.Context {
	t.Helper()
	select {
	case ctx := <-b.started:
		return ctx
	case <-time.After(time.Second):
		t.Fatal("fetch did not start")
		return nil
	}
}

// dropFilter rejects the given IDs.
type dropFilter struct {
	drop map[string]bool
}

func (f dropFilter) Apply(ctx context.Context, items []media.Item, source media.Source) []media.Item {
	var out []media.Item
	for _, it := range items {
		if !f.drop[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

var watchEndpoint = song.Endpoint{VideoID: "seed"}

func TestSession_SetupRequiresEndpoint(t *testing.T) {
	s := NewSession(Config{}, &stubSource{}, newFakeQueue(), nil)
	_, err := s.Setup(song.Endpoint{})
	assert.Error(t, err)
	assert.False(t, s.IsActive())
}

func TestSession_ExtendWhileIdle(t *testing.T) {
	source := &stubSource{fn: func(int) ([]Candidate, error) { return nil, nil }}
	s := NewSession(Config{}, source, newFakeQueue(), nil)

	assert.True(t, errors.Is(s.Extend(), ErrIdle))
	s.OnDepleting()
	s.Wait()
	assert.Equal(t, 0, source.callCount())
}

func TestSession_AppendsRadioItemsOnDepleting(t *testing.T) {
	queue := newFakeQueue("q1", "q2", "q3", "q4")
	source := &stubSource{fn: func(int) ([]Candidate, error) {
		return candidates("Spotify", "r1", "r2"), nil
	}}
	s := NewSession(Config{SeedCount: 2}, source, queue, nil)
	id, err := s.Setup(watchEndpoint)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s.OnDepleting()
	s.Wait()

	items, enqueues := queue.snapshot()
	assert.Equal(t, 1, enqueues)
	assert.Equal(t, []string{"q1", "q2", "q3", "q4", "r1", "r2"}, media.IDs(items))
	assert.Equal(t, media.SourceRadio, items[4].Source)
	assert.Equal(t, media.SourceRadio, items[5].Source)
	assert.False(t, items[4].AddedAt.IsZero())

	// Request carries the endpoint, the latest seeds and the queued IDs
	require.Len(t, source.reqs, 1)
	req := source.reqs[0]
	assert.Equal(t, watchEndpoint, req.Endpoint)
	assert.Equal(t, []string{"q3", "q4"}, media.IDs(req.Seeds))
	assert.Len(t, req.ExcludeIDs, 4)
	assert.True(t, req.ExcludeIDs["q1"])

	info := s.Info()
	assert.True(t, info.Active)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, 2, info.Appended)
	assert.False(t, info.Fetching)
}

func TestSession_CarriesContinuationBetweenFetches(t *testing.T) {
	source := &stubSource{fn: func(int) ([]Candidate, error) { return nil, nil }}
	s := NewSession(Config{}, source, newFakeQueue("q1"), nil)
	_, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, s.Extend())
		s.Wait()
	}
	require.Len(t, source.conts, 2)
	assert.Empty(t, source.conts[0].Tokens)
	assert.Equal(t, "page-1", source.conts[1].Tokens["stub"])

	// A new session starts from the first page again
	_, err = s.Setup(watchEndpoint)
	require.NoError(t, err)
	require.NoError(t, s.Extend())
	s.Wait()
	assert.Empty(t, source.conts[2].Tokens)
}

func TestSession_FiltersAndTruncatesBatch(t *testing.T) {
	queue := newFakeQueue("q1")
	source := &stubSource{fn: func(int) ([]Candidate, error) {
		return candidates("Spotify", "r1", "bad", "r2", "r3"), nil
	}}
	s := NewSession(Config{BatchSize: 2}, source, queue, dropFilter{drop: map[string]bool{"bad": true}})
	_, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	s.OnDepleting()
	s.Wait()

	items, _ := queue.snapshot()
	assert.Equal(t, []string{"q1", "r1", "r2"}, media.IDs(items))
}

func TestSession_StopDiscardsInFlightFetch(t *testing.T) {
	queue := newFakeQueue("q1")
	source := newBlockingSource("r1")
	s := NewSession(Config{}, source, queue, nil)
	_, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	s.OnDepleting()
	fetchCtx := waitStarted(t, source)

	s.Stop()
	assert.Error(t, fetchCtx.Err(), "stop cancels the fetch context")
	close(source.release)
	s.Wait()

	_, enqueues := queue.snapshot()
	assert.Equal(t, 0, enqueues)
	assert.False(t, s.IsActive())

	// A depletion signal after Stop does nothing
	s.OnDepleting()
	s.Wait()
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestSession_SetupReplacesRunningSession(t *testing.T) {
	queue := newFakeQueue("q1")
	source := newBlockingSource("old")
	s := NewSession(Config{}, source, queue, nil)
	firstID, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	s.OnDepleting()
	firstCtx := waitStarted(t, source)

	secondID, err := s.Setup(song.Endpoint{VideoID: "other"})
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)
	assert.Error(t, firstCtx.Err())

	close(source.release)
	s.Wait()
	_, enqueues := queue.snapshot()
	assert.Equal(t, 0, enqueues, "batch of the replaced session is discarded")

	// The new session fetches on its own
	source.ids = []string{"new"}
	s.OnDepleting()
	s.Wait()
	items, _ := queue.snapshot()
	assert.Equal(t, []string{"q1", "new"}, media.IDs(items))
	assert.Equal(t, "other", s.Info().Endpoint.VideoID)
}

func TestSession_SingleFetchInFlight(t *testing.T) {
	queue := newFakeQueue("q1")
	source := newBlockingSource("r1")
	s := NewSession(Config{}, source, queue, nil)
	_, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	s.OnDepleting()
	waitStarted(t, source)
	assert.True(t, s.Info().Fetching)

	s.OnDepleting()
	s.OnDepleting()
	assert.NoError(t, s.Extend())

	close(source.release)
	s.Wait()
	assert.Equal(t, int32(1), source.calls.Load())
	_, enqueues := queue.snapshot()
	assert.Equal(t, 1, enqueues)
}

func TestSession_FetchFailureIsSwallowed(t *testing.T) {
	queue := newFakeQueue("q1")
	source := &stubSource{fn: func(call int) ([]Candidate, error) {
		if call == 1 {
			return nil, errors.New("catalog unavailable")
		}
		return candidates("Spotify", "r1"), nil
	}}
	s := NewSession(Config{}, source, queue, nil)
	_, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	s.OnDepleting()
	s.Wait()
	_, enqueues := queue.snapshot()
	assert.Equal(t, 0, enqueues)
	assert.True(t, s.IsActive())
	assert.False(t, s.Info().Fetching)

	// The next signal tries again
	s.OnDepleting()
	s.Wait()
	items, _ := queue.snapshot()
	assert.Equal(t, []string{"q1", "r1"}, media.IDs(items))
}

func TestSession_Exhausted(t *testing.T) {
	source := &stubSource{fn: func(int) ([]Candidate, error) { return nil, ErrExhausted }}
	s := NewSession(Config{}, source, newFakeQueue("q1"), nil)
	_, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	require.NoError(t, s.Extend())
	s.Wait()
	assert.True(t, s.Info().Exhausted)
	assert.True(t, errors.Is(s.Extend(), ErrExhausted))
	assert.Equal(t, 1, source.callCount())
}

func TestSession_ExhaustedAfterReplaceIsIgnored(t *testing.T) {
	source := newBlockingSource()
	source.err = ErrExhausted
	s := NewSession(Config{}, source, newFakeQueue("q1"), nil)
	first, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	s.OnDepleting()
	waitStarted(t, source)

	second, err := s.Setup(song.Endpoint{VideoID: "other"})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	close(source.release)
	s.Wait()

	info := s.Info()
	assert.Equal(t, second, info.ID)
	assert.False(t, info.Exhausted)
	assert.False(t, info.Fetching)
}

func TestSession_Close(t *testing.T) {
	source := newBlockingSource("r1")
	queue := newFakeQueue("q1")
	s := NewSession(Config{}, source, queue, nil)
	_, err := s.Setup(watchEndpoint)
	require.NoError(t, err)

	s.OnDepleting()
	waitStarted(t, source)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	close(source.release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	_, enqueues := queue.snapshot()
	assert.Equal(t, 0, enqueues)
}
