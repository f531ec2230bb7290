package radio

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/domain/song"
)

// ErrIdle is returned when no radio session is active.
var ErrIdle = errors.New("radio is idle")

// Queue is the play queue a session appends to.
type Queue interface {
	GetQueue() []media.Item
	Enqueue(items ...media.Item)
}

// CandidateSource produces candidates for a session.
type CandidateSource interface {
	Next(ctx context.Context, req Request, cont Continuation) ([]Candidate, Continuation, error)
}

// CandidateFilter drops candidates that must not be queued.
type CandidateFilter interface {
	Apply(ctx context.Context, items []media.Item, source media.Source) []media.Item
}

// Config represents session configuration.
type Config struct {
	BatchSize    int           // Maximum items appended per fetch
	SeedCount    int           // Number of recent queue items passed as seeds
	FetchTimeout time.Duration // Upper bound for a single fetch
}

// Info is a snapshot of the session state.
type Info struct {
	Active    bool
	ID        string
	Endpoint  song.Endpoint
	StartedAt time.Time
	Fetching  bool
	Exhausted bool
	Appended  int
}

// session is one Setup..Stop lifetime.
type session struct {
	id           string
	endpoint     song.Endpoint
	startedAt    time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	continuation Continuation
	fetching     bool
	exhausted    bool
	appended     int
}

// Session manages at most one running radio. A new Setup replaces the
// running radio wholesale; Stop guarantees no further appends from it.
type Session struct {
	config  Config
	source  CandidateSource
	queue   Queue
	filter  CandidateFilter
	mu      sync.Mutex // guards current; taken before the queue's own lock
	current *session
	wg      sync.WaitGroup
}

// NewSession creates an idle radio session manager. filter may be nil.
func NewSession(config Config, source CandidateSource, queue Queue, filter CandidateFilter) *Session {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.SeedCount <= 0 {
		config.SeedCount = 3
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 15 * time.Second
	}
	return &Session{
		config: config,
		source: source,
		queue:  queue,
		filter: filter,
	}
}

// Setup starts a radio from endpoint, cancelling any running one first.
// It returns the new session ID.
func (s *Session) Setup(endpoint song.Endpoint) (string, error) {
	if endpoint.IsZero() {
		return "", errors.New("radio endpoint requires a video or playlist ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.current = &session{
		id:           uuid.NewString(),
		endpoint:     endpoint,
		startedAt:    time.Now(),
		ctx:          ctx,
		cancel:       cancel,
		continuation: NewContinuation(),
	}
	zlog.Info().Msgf("radio: started: id=%s endpoint=%s", s.current.id, endpoint)
	return s.current.id, nil
}

// Stop stops the running radio. In-flight fetches are cancelled and their
// results discarded. Stopping an idle session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.current == nil {
		return
	}
	s.current.cancel()
	zlog.Info().Msgf("radio: stopped: id=%s endpoint=%s appended=%d", s.current.id, s.current.endpoint, s.current.appended)
	s.current = nil
}

// IsActive reports whether a radio is running.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Info returns a snapshot of the running radio.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Info{}
	}
	return Info{
		Active:    true,
		ID:        s.current.id,
		Endpoint:  s.current.endpoint,
		StartedAt: s.current.startedAt,
		Fetching:  s.current.fetching,
		Exhausted: s.current.exhausted,
		Appended:  s.current.appended,
	}
}

// OnDepleting is the tail-proximity signal. It starts a background fetch
// unless the radio is idle, exhausted, or already fetching.
func (s *Session) OnDepleting() {
	if err := s.Extend(); err != nil && !errors.Is(err, ErrIdle) {
		zlog.Debug().Msgf("radio: depletion ignored: %v", err)
	}
}

// Extend starts a background fetch of the next batch.
// A fetch already in flight is not duplicated and returns nil.
func (s *Session) Extend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.current
	if sess == nil {
		return ErrIdle
	}
	if sess.exhausted {
		return ErrExhausted
	}
	if sess.fetching {
		return nil
	}
	sess.fetching = true

	s.wg.Add(1)
	go s.fetch(sess)
	return nil
}

// Wait blocks until all in-flight fetches have returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops the radio and waits for in-flight fetches.
func (s *Session) Close() {
	s.Stop()
	s.wg.Wait()
}

func (s *Session) fetch(sess *session) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		sess.fetching = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(sess.ctx, s.config.FetchTimeout)
	defer cancel()

	queue := s.queue.GetQueue()
	req := Request{
		Endpoint:   sess.endpoint,
		Count:      s.config.BatchSize,
		Seeds:      tail(queue, s.config.SeedCount),
		ExcludeIDs: make(map[string]bool, len(queue)),
	}
	for _, it := range queue {
		req.ExcludeIDs[it.ID] = true
	}

	s.mu.Lock()
	cont := sess.continuation.Clone()
	s.mu.Unlock()

	start := time.Now()
	candidates, next, err := s.source.Next(ctx, req, cont)
	if errors.Is(err, ErrExhausted) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current != sess || sess.ctx.Err() != nil {
			return
		}
		sess.exhausted = true
		zlog.Info().Msgf("radio: exhausted: id=%s endpoint=%s", sess.id, sess.endpoint)
		return
	}
	if err != nil {
		if sess.ctx.Err() == nil {
			zlog.Warn().Msgf("radio: fetch failed: id=%s error=%v", sess.id, err)
		}
		return
	}

	items := make([]media.Item, 0, len(candidates))
	sourceByID := make(map[string]string, len(candidates))
	for _, c := range candidates {
		items = append(items, c.Item)
		sourceByID[c.Item.ID] = c.DisplayName
	}
	if s.filter != nil {
		items = s.filter.Apply(ctx, items, media.SourceRadio)
	}
	if len(items) > s.config.BatchSize {
		items = items[:s.config.BatchSize]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The session may have been stopped or replaced while fetching.
	if s.current != sess || sess.ctx.Err() != nil {
		zlog.Debug().Msgf("radio: discarding batch of stopped session: id=%s count=%d", sess.id, len(items))
		return
	}

	sess.continuation = next
	if len(items) == 0 {
		zlog.Info().Msgf("radio: no candidates after filtering: id=%s candidates=%d", sess.id, len(candidates))
		return
	}

	s.queue.Enqueue(media.Stamp(media.WithSource(items, media.SourceRadio), time.Now())...)
	sess.appended += len(items)
	for _, it := range items {
		zlog.Debug().Msgf("radio: appended: id=%s track=%s source=%s", sess.id, it.ID, sourceByID[it.ID])
	}
	zlog.Info().Msgf("radio: batch appended: id=%s count=%d total=%d elapsed=%s",
		sess.id, len(items), sess.appended, time.Since(start))
}

func tail(items []media.Item, n int) []media.Item {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]media.Item, len(items))
	copy(out, items)
	return out
}
