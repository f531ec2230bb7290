// Package player provides the player service: the playback queue, the radio
// session and the library wired together behind one API.
package player

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/app/filter"
	"github.com/osa030/quaver/internal/app/library"
	"github.com/osa030/quaver/internal/app/notification"
	"github.com/osa030/quaver/internal/app/playback"
	"github.com/osa030/quaver/internal/app/radio"
	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/domain/song"
	"github.com/osa030/quaver/internal/infra/config"
	"github.com/osa030/quaver/internal/infra/store"
)

// ErrNothingPlaying is returned by operations on the current item when the
// queue is empty.
var ErrNothingPlaying = errors.New("nothing is playing")

// Catalog resolves track and album references.
type Catalog interface {
	GetTrack(ctx context.Context, ref string) (*song.Song, error)
	GetAlbum(ctx context.Context, ref string) (*song.Album, error)
}

// QueueStore persists the queue across restarts.
type QueueStore interface {
	SaveQueue(ctx context.Context, q store.SavedQueue) error
	LoadQueue(ctx context.Context) (*store.SavedQueue, error)
}

// Dependencies are the components the service is built on.
type Dependencies struct {
	Engine       playback.Engine
	Source       radio.CandidateSource
	Catalog      Catalog
	Library      *library.Service
	Notification *notification.Manager
	QueueStore   QueueStore // nil disables queue persistence
}

// Status is a point-in-time view of the player.
type Status struct {
	Playback playback.Snapshot
	LikedAt  *time.Time // Like state of the current item
	Radio    radio.Info
}

// Service is the player service.
type Service struct {
	config *config.Config

	controller   *playback.Controller
	radio        *radio.Session
	catalog      Catalog
	library      *library.Service
	notification *notification.Manager
	queueStore   QueueStore

	// Like state mirror for the current item
	likeMu  sync.RWMutex
	likeID  string
	likedAt *time.Time

	// Start playback once a radio delivers into an empty queue
	autoplay atomic.Bool

	rngMu sync.Mutex
	rng   *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new player service.
func NewService(cfg *config.Config, deps Dependencies) (*Service, error) {
	if deps.Engine == nil || deps.Source == nil || deps.Catalog == nil || deps.Library == nil || deps.Notification == nil {
		return nil, errors.New("player: missing dependency")
	}

	repeat, err := playback.ParseRepeatMode(cfg.Player.RepeatMode)
	if err != nil {
		return nil, err
	}

	controller := playback.NewController(playback.Config{
		RepeatMode:         repeat,
		DepletionItems:     cfg.Radio.Threshold,
		DepletionThreshold: cfg.DepletionThreshold(),
		EventBuffer:        cfg.Player.EventBuffer,
	}, deps.Engine)

	filterChain, err := filter.NewChainFromConfig(cfg, controller)
	if err != nil {
		controller.Close()
		return nil, errors.Wrap(err, "failed to create filter chain")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		config:       cfg,
		controller:   controller,
		catalog:      deps.Catalog,
		library:      deps.Library,
		notification: deps.Notification,
		queueStore:   deps.QueueStore,
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	s.radio = radio.NewSession(radio.Config{
		BatchSize:    cfg.Radio.BatchSize,
		SeedCount:    cfg.Radio.SeedCount,
		FetchTimeout: cfg.FetchTimeout(),
	}, deps.Source, controller, filterChain)

	deps.Library.AddListener(s)
	return s, nil
}

// Start restores the persisted queue (paused) and starts the event loop.
func (s *Service) Start(ctx context.Context) error {
	if s.queueStore != nil {
		if err := s.restoreQueue(ctx); err != nil {
			zlog.Warn().Err(err).Msg("player: failed to restore queue")
		}
	}

	go s.eventLoop()
	zlog.Info().Msgf("player: started: repeat=%s persist_queue=%t", s.controller.GetRepeatMode(), s.queueStore != nil)
	return nil
}

func (s *Service) restoreQueue(ctx context.Context) error {
	saved, err := s.queueStore.LoadQueue(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	items := media.WithSource(saved.Items, media.SourceRestored)
	if err := s.controller.Restore(items, saved.Index); err != nil {
		return err
	}
	if saved.Position > 0 {
		if err := s.controller.Seek(saved.Position); err != nil {
			zlog.Debug().Msgf("player: restore position: %v", err)
		}
	}
	if current, ok := s.controller.GetCurrentItem(); ok {
		s.refreshLike(ctx, current.ID)
	}
	zlog.Info().Msgf("player: queue restored: items=%d index=%d position=%s", len(items), saved.Index, saved.Position)
	return nil
}

// Shutdown stops the radio, persists the queue and releases the controller.
func (s *Service) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	default:
	}

	s.radio.Close()

	var saveErr error
	if s.queueStore != nil {
		snap := s.controller.Snapshot()
		saveErr = s.queueStore.SaveQueue(ctx, store.SavedQueue{
			Items:    snap.Queue,
			Index:    snap.Index,
			Position: snap.Position,
		})
		if saveErr == nil {
			zlog.Info().Msgf("player: queue saved: items=%d index=%d", len(snap.Queue), snap.Index)
		}
	}

	s.cancel()
	s.controller.Close()
	close(s.done)
	return saveErr
}

// Done returns a channel closed after Shutdown.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Notifications returns the notification hub.
func (s *Service) Notifications() *notification.Manager {
	return s.notification
}

// Status returns the current player status.
func (s *Service) Status() Status {
	snap := s.controller.Snapshot()
	st := Status{Playback: snap, Radio: s.radio.Info()}
	if snap.Current != nil {
		st.LikedAt = s.mirroredLike(snap.Current.ID)
	}
	return st
}

// Play starts or resumes playback.
func (s *Service) Play() error {
	return s.controller.Play()
}

// Pause pauses playback.
func (s *Service) Pause() error {
	return s.controller.Pause()
}

// Stop stops playback, keeping the queue.
func (s *Service) Stop() error {
	return s.controller.Stop()
}

// Next plays the next item.
func (s *Service) Next() error {
	return s.controller.ForceSeekToNext()
}

// Previous plays the previous item.
func (s *Service) Previous() error {
	return s.controller.ForceSeekToPrevious()
}

// SeekToIndex plays the queue item at index.
func (s *Service) SeekToIndex(index int) error {
	return s.controller.SeekToIndex(index)
}

// Seek moves the position of the current item.
func (s *Service) Seek(pos time.Duration) error {
	return s.controller.Seek(pos)
}

// Scrub sets the transient scrub position.
func (s *Service) Scrub(pos time.Duration) error {
	return s.controller.Scrub(pos)
}

// CommitScrub seeks to the scrub position.
func (s *Service) CommitScrub() error {
	return s.controller.CommitScrub()
}

// CancelScrub discards the scrub position.
func (s *Service) CancelScrub() {
	s.controller.CancelScrub()
}

// SetRepeatMode sets the repeat mode.
func (s *Service) SetRepeatMode(mode playback.RepeatMode) {
	s.controller.SetRepeatMode(mode)
}

// RemoveAt removes the queue item at index.
func (s *Service) RemoveAt(index int) error {
	return s.controller.RemoveAt(index)
}

// Move moves a queue item.
func (s *Service) Move(from, to int) error {
	return s.controller.Move(from, to)
}

// Clear stops the radio and empties the queue.
func (s *Service) Clear() {
	s.stopRadio()
	s.controller.Clear()
}

// Enqueue appends tracks to the queue without interrupting playback.
func (s *Service) Enqueue(ctx context.Context, refs ...string) ([]media.Item, error) {
	items, err := s.resolveTracks(ctx, refs)
	if err != nil {
		return nil, err
	}
	s.controller.Enqueue(items...)
	return items, nil
}

// PlayNext inserts tracks right after the current item.
func (s *Service) PlayNext(ctx context.Context, refs ...string) ([]media.Item, error) {
	items, err := s.resolveTracks(ctx, refs)
	if err != nil {
		return nil, err
	}
	s.controller.PlayNext(items...)
	return items, nil
}

// PlaySongs replaces the queue with tracks and plays the one at index.
// With shuffle the order is randomized and playback starts at the head.
func (s *Service) PlaySongs(ctx context.Context, refs []string, index int, shuffle bool) error {
	items, err := s.resolveTracks(ctx, refs)
	if err != nil {
		return err
	}
	return s.playItems(items, index, shuffle)
}

// PlayAlbum replaces the queue with an album and plays the track at index.
func (s *Service) PlayAlbum(ctx context.Context, ref string, index int, shuffle bool) error {
	album, err := s.catalog.GetAlbum(ctx, ref)
	if err != nil {
		return err
	}
	items := media.FromAlbum(*album)
	if len(items) == 0 {
		return errors.Newf("album %s has no tracks", album.ID)
	}
	return s.playItems(items, index, shuffle)
}

// PlayPlaylist replaces the queue with a local playlist.
func (s *Service) PlayPlaylist(ctx context.Context, playlistID string, index int, shuffle bool) error {
	p, err := s.library.Playlist(ctx, playlistID)
	if err != nil {
		return err
	}
	items := media.FromSongs(p.Songs)
	if len(items) == 0 {
		return errors.Newf("playlist %s is empty", playlistID)
	}
	return s.playItems(items, index, shuffle)
}

// PlayLiked replaces the queue with the liked songs.
func (s *Service) PlayLiked(ctx context.Context, shuffle bool) error {
	songs, err := s.library.LikedSongs(ctx)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return errors.New("no liked songs")
	}
	return s.playItems(media.FromSongs(songs), 0, shuffle)
}

func (s *Service) playItems(items []media.Item, index int, shuffle bool) error {
	s.stopRadio()
	items = media.Stamp(items, time.Now())
	if shuffle {
		s.rngMu.Lock()
		items = media.Shuffle(items, s.rng)
		s.rngMu.Unlock()
		return s.controller.ForcePlayFromBeginning(items)
	}
	return s.controller.ForcePlayAtIndex(items, index)
}

// StartRadio starts a radio seeded by a track. An empty ref seeds it with
// the current item, which keeps playing; everything else in the queue is
// dropped. It returns the radio session ID.
func (s *Service) StartRadio(ctx context.Context, ref string) (string, error) {
	var item media.Item
	if ref == "" {
		current, ok := s.controller.GetCurrentItem()
		if !ok {
			return "", ErrNothingPlaying
		}
		item = current
	} else {
		items, err := s.resolveTracks(ctx, []string{ref})
		if err != nil {
			return "", err
		}
		item = items[0]
	}

	s.stopRadio()
	if err := s.controller.SeamlessPlay(item); err != nil {
		return "", err
	}
	return s.setupRadio(song.Endpoint{VideoID: item.ID})
}

// StartPlaylistRadio clears the queue and starts a radio that pages through
// a remote playlist. Playback starts when the first batch arrives.
func (s *Service) StartPlaylistRadio(ctx context.Context, playlistRef string) (string, error) {
	if playlistRef == "" {
		return "", errors.New("playlist reference is required")
	}
	s.stopRadio()
	s.controller.Clear()
	s.autoplay.Store(true)
	return s.setupRadio(song.Endpoint{PlaylistID: playlistRef})
}

func (s *Service) setupRadio(endpoint song.Endpoint) (string, error) {
	id, err := s.radio.Setup(endpoint)
	if err != nil {
		s.autoplay.Store(false)
		return "", err
	}
	// The depletion signal may have fired before Setup; fetch the first
	// batch now.
	if err := s.radio.Extend(); err != nil {
		zlog.Warn().Err(err).Msgf("player: radio first fetch: id=%s", id)
	}
	s.notification.Broadcast(notification.Notification{
		Kind:     notification.KindRadioStarted,
		TargetID: id,
	})
	return id, nil
}

// StopRadio stops the running radio. Stopping an idle radio is a no-op.
func (s *Service) StopRadio() {
	s.stopRadio()
}

func (s *Service) stopRadio() {
	s.autoplay.Store(false)
	info := s.radio.Info()
	if !info.Active {
		return
	}
	s.radio.Stop()
	s.notification.Broadcast(notification.Notification{
		Kind:     notification.KindRadioStopped,
		TargetID: info.ID,
	})
}

// RadioInfo returns the running radio, if any.
func (s *Service) RadioInfo() radio.Info {
	return s.radio.Info()
}

// ToggleLikeCurrent flips the like state of the current item.
func (s *Service) ToggleLikeCurrent(ctx context.Context) (*time.Time, error) {
	current, ok := s.controller.GetCurrentItem()
	if !ok {
		return nil, ErrNothingPlaying
	}
	return s.library.ToggleLike(ctx, current.ToSong())
}

// ToggleLike flips the like state of a track. Queue entries are used as is;
// other references are resolved through the catalog.
func (s *Service) ToggleLike(ctx context.Context, ref string) (*time.Time, error) {
	for _, it := range s.controller.GetQueue() {
		if it.ID == ref {
			return s.library.ToggleLike(ctx, it.ToSong())
		}
	}
	sg, err := s.catalog.GetTrack(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.library.ToggleLike(ctx, *sg)
}

// ToggleBookmark flips the bookmark of an album.
func (s *Service) ToggleBookmark(ctx context.Context, ref string) (*time.Time, error) {
	album, err := s.catalog.GetAlbum(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.library.ToggleBookmark(ctx, *album)
}

// OnLikeChanged implements library.Listener.
func (s *Service) OnLikeChanged(trackID string, likedAt *time.Time) {
	s.likeMu.Lock()
	if s.likeID == trackID {
		s.likedAt = likedAt
	}
	s.likeMu.Unlock()

	s.notification.Broadcast(notification.Notification{
		Kind:      notification.KindLikeChanged,
		TargetID:  trackID,
		Timestamp: likedAt,
	})
}

// OnBookmarkChanged implements library.Listener.
func (s *Service) OnBookmarkChanged(albumID string, bookmarkedAt *time.Time) {
	s.notification.Broadcast(notification.Notification{
		Kind:      notification.KindBookmarkChanged,
		TargetID:  albumID,
		Timestamp: bookmarkedAt,
	})
}

func (s *Service) mirroredLike(id string) *time.Time {
	s.likeMu.RLock()
	defer s.likeMu.RUnlock()
	if s.likeID != id {
		return nil
	}
	return s.likedAt
}

func (s *Service) mirrorsLike(id string) bool {
	s.likeMu.RLock()
	defer s.likeMu.RUnlock()
	return s.likeID == id
}

func (s *Service) refreshLike(ctx context.Context, id string) {
	likedAt, err := s.library.LikedAt(ctx, id)
	if err != nil {
		zlog.Warn().Err(err).Msgf("player: failed to read like state: track=%s", id)
		return
	}
	s.likeMu.Lock()
	s.likeID = id
	s.likedAt = likedAt
	s.likeMu.Unlock()
}

func (s *Service) resolveTracks(ctx context.Context, refs []string) ([]media.Item, error) {
	if len(refs) == 0 {
		return nil, errors.New("at least one track is required")
	}
	items := make([]media.Item, 0, len(refs))
	for _, ref := range refs {
		sg, err := s.catalog.GetTrack(ctx, ref)
		if err != nil {
			return nil, err
		}
		items = append(items, media.FromSong(*sg))
	}
	return media.Stamp(items, time.Now()), nil
}
