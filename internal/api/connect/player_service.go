package connect

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/app/playback"
	"github.com/osa030/quaver/internal/app/player"
)

// PlayerServiceName is the fully-qualified name of the player service.
const PlayerServiceName = "quaver.v1.PlayerService"

// Player service procedures.
const (
	PlayerGetStatusProcedure          = "/" + PlayerServiceName + "/GetStatus"
	PlayerPlayProcedure               = "/" + PlayerServiceName + "/Play"
	PlayerPauseProcedure              = "/" + PlayerServiceName + "/Pause"
	PlayerStopProcedure               = "/" + PlayerServiceName + "/Stop"
	PlayerNextProcedure               = "/" + PlayerServiceName + "/Next"
	PlayerPreviousProcedure           = "/" + PlayerServiceName + "/Previous"
	PlayerSeekToIndexProcedure        = "/" + PlayerServiceName + "/SeekToIndex"
	PlayerSeekProcedure               = "/" + PlayerServiceName + "/Seek"
	PlayerScrubProcedure              = "/" + PlayerServiceName + "/Scrub"
	PlayerCommitScrubProcedure        = "/" + PlayerServiceName + "/CommitScrub"
	PlayerCancelScrubProcedure        = "/" + PlayerServiceName + "/CancelScrub"
	PlayerSetRepeatModeProcedure      = "/" + PlayerServiceName + "/SetRepeatMode"
	PlayerEnqueueProcedure            = "/" + PlayerServiceName + "/Enqueue"
	PlayerPlayNextProcedure           = "/" + PlayerServiceName + "/PlayNext"
	PlayerPlaySongsProcedure          = "/" + PlayerServiceName + "/PlaySongs"
	PlayerPlayAlbumProcedure          = "/" + PlayerServiceName + "/PlayAlbum"
	PlayerPlayPlaylistProcedure       = "/" + PlayerServiceName + "/PlayPlaylist"
	PlayerPlayLikedProcedure          = "/" + PlayerServiceName + "/PlayLiked"
	PlayerRemoveAtProcedure           = "/" + PlayerServiceName + "/RemoveAt"
	PlayerMoveProcedure               = "/" + PlayerServiceName + "/Move"
	PlayerClearProcedure              = "/" + PlayerServiceName + "/Clear"
	PlayerStartRadioProcedure         = "/" + PlayerServiceName + "/StartRadio"
	PlayerStartPlaylistRadioProcedure = "/" + PlayerServiceName + "/StartPlaylistRadio"
	PlayerStopRadioProcedure          = "/" + PlayerServiceName + "/StopRadio"
	PlayerToggleLikeProcedure         = "/" + PlayerServiceName + "/ToggleLike"
	PlayerToggleBookmarkProcedure     = "/" + PlayerServiceName + "/ToggleBookmark"
	PlayerWatchProcedure              = "/" + PlayerServiceName + "/Watch"
)

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player *player.Service
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(p *player.Service) *PlayerService {
	return &PlayerService{player: p}
}

// NewPlayerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewPlayerServiceHandler(s *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	return "/" + PlayerServiceName + "/", serviceHandler([]route{
		unaryRoute(PlayerGetStatusProcedure, s.GetStatus, opts),
		unaryRoute(PlayerPlayProcedure, s.Play, opts),
		unaryRoute(PlayerPauseProcedure, s.Pause, opts),
		unaryRoute(PlayerStopProcedure, s.Stop, opts),
		unaryRoute(PlayerNextProcedure, s.Next, opts),
		unaryRoute(PlayerPreviousProcedure, s.Previous, opts),
		unaryRoute(PlayerSeekToIndexProcedure, s.SeekToIndex, opts),
		unaryRoute(PlayerSeekProcedure, s.Seek, opts),
		unaryRoute(PlayerScrubProcedure, s.Scrub, opts),
		unaryRoute(PlayerCommitScrubProcedure, s.CommitScrub, opts),
		unaryRoute(PlayerCancelScrubProcedure, s.CancelScrub, opts),
		unaryRoute(PlayerSetRepeatModeProcedure, s.SetRepeatMode, opts),
		unaryRoute(PlayerEnqueueProcedure, s.Enqueue, opts),
		unaryRoute(PlayerPlayNextProcedure, s.PlayNext, opts),
		unaryRoute(PlayerPlaySongsProcedure, s.PlaySongs, opts),
		unaryRoute(PlayerPlayAlbumProcedure, s.PlayAlbum, opts),
		unaryRoute(PlayerPlayPlaylistProcedure, s.PlayPlaylist, opts),
		unaryRoute(PlayerPlayLikedProcedure, s.PlayLiked, opts),
		unaryRoute(PlayerRemoveAtProcedure, s.RemoveAt, opts),
		unaryRoute(PlayerMoveProcedure, s.Move, opts),
		unaryRoute(PlayerClearProcedure, s.Clear, opts),
		unaryRoute(PlayerStartRadioProcedure, s.StartRadio, opts),
		unaryRoute(PlayerStartPlaylistRadioProcedure, s.StartPlaylistRadio, opts),
		unaryRoute(PlayerStopRadioProcedure, s.StopRadio, opts),
		unaryRoute(PlayerToggleLikeProcedure, s.ToggleLike, opts),
		unaryRoute(PlayerToggleBookmarkProcedure, s.ToggleBookmark, opts),
		serverStreamRoute(PlayerWatchProcedure, s.Watch, opts),
	})
}

// status answers a mutating call with the player status after the change.
func (s *PlayerService) status(err error) (*connect.Response[StatusResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toStatus(s.player.Status())), nil
}

// GetStatus returns the current player status.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.status(nil)
}

// Play starts or resumes playback.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.Play())
}

// Pause pauses playback.
func (s *PlayerService) Pause(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.Pause())
}

// Stop stops playback.
func (s *PlayerService) Stop(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.Stop())
}

// Next plays the next item.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.Next())
}

// Previous plays the previous item.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.Previous())
}

// SeekToIndex plays the queue item at an index.
func (s *PlayerService) SeekToIndex(
	ctx context.Context,
	req *connect.Request[IndexRequest],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.SeekToIndex(req.Msg.Index))
}

// Seek moves the position of the current item.
func (s *PlayerService) Seek(
	ctx context.Context,
	req *connect.Request[PositionRequest],
) (*connect.Response[StatusResponse], error) {
	if req.Msg.PositionMs < 0 {
		return nil, invalidArgument("position must not be negative")
	}
	return s.status(s.player.Seek(time.Duration(req.Msg.PositionMs) * time.Millisecond))
}

// Scrub sets the transient scrub position.
func (s *PlayerService) Scrub(
	ctx context.Context,
	req *connect.Request[PositionRequest],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.Scrub(time.Duration(req.Msg.PositionMs) * time.Millisecond))
}

// CommitScrub seeks to the scrub position.
func (s *PlayerService) CommitScrub(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.CommitScrub())
}

// CancelScrub discards the scrub position.
func (s *PlayerService) CancelScrub(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.player.CancelScrub()
	return s.status(nil)
}

// SetRepeatMode sets the repeat mode.
func (s *PlayerService) SetRepeatMode(
	ctx context.Context,
	req *connect.Request[RepeatModeRequest],
) (*connect.Response[StatusResponse], error) {
	mode, err := playback.ParseRepeatMode(req.Msg.Mode)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.player.SetRepeatMode(mode)
	return s.status(nil)
}

// Enqueue appends tracks to the queue.
func (s *PlayerService) Enqueue(
	ctx context.Context,
	req *connect.Request[TracksRequest],
) (*connect.Response[TracksResponse], error) {
	if len(req.Msg.TrackIDs) == 0 {
		return nil, invalidArgument("track_ids is required")
	}
	items, err := s.player.Enqueue(ctx, req.Msg.TrackIDs...)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TracksResponse{Tracks: toTracks(items)}), nil
}

// PlayNext inserts tracks after the current item.
func (s *PlayerService) PlayNext(
	ctx context.Context,
	req *connect.Request[TracksRequest],
) (*connect.Response[TracksResponse], error) {
	if len(req.Msg.TrackIDs) == 0 {
		return nil, invalidArgument("track_ids is required")
	}
	items, err := s.player.PlayNext(ctx, req.Msg.TrackIDs...)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TracksResponse{Tracks: toTracks(items)}), nil
}

// PlaySongs replaces the queue with tracks.
func (s *PlayerService) PlaySongs(
	ctx context.Context,
	req *connect.Request[PlayTracksRequest],
) (*connect.Response[StatusResponse], error) {
	if len(req.Msg.TrackIDs) == 0 {
		return nil, invalidArgument("track_ids is required")
	}
	return s.status(s.player.PlaySongs(ctx, req.Msg.TrackIDs, req.Msg.Index, req.Msg.Shuffle))
}

// PlayAlbum replaces the queue with an album.
func (s *PlayerService) PlayAlbum(
	ctx context.Context,
	req *connect.Request[PlayAlbumRequest],
) (*connect.Response[StatusResponse], error) {
	if req.Msg.AlbumID == "" {
		return nil, invalidArgument("album_id is required")
	}
	return s.status(s.player.PlayAlbum(ctx, req.Msg.AlbumID, req.Msg.Index, req.Msg.Shuffle))
}

// PlayPlaylist replaces the queue with a local playlist.
func (s *PlayerService) PlayPlaylist(
	ctx context.Context,
	req *connect.Request[PlayPlaylistRequest],
) (*connect.Response[StatusResponse], error) {
	if req.Msg.PlaylistID == "" {
		return nil, invalidArgument("playlist_id is required")
	}
	return s.status(s.player.PlayPlaylist(ctx, req.Msg.PlaylistID, req.Msg.Index, req.Msg.Shuffle))
}

// PlayLiked replaces the queue with the liked songs.
func (s *PlayerService) PlayLiked(
	ctx context.Context,
	req *connect.Request[PlayLikedRequest],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.PlayLiked(ctx, req.Msg.Shuffle))
}

// RemoveAt removes a queue item.
func (s *PlayerService) RemoveAt(
	ctx context.Context,
	req *connect.Request[IndexRequest],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.RemoveAt(req.Msg.Index))
}

// Move moves a queue item.
func (s *PlayerService) Move(
	ctx context.Context,
	req *connect.Request[MoveRequest],
) (*connect.Response[StatusResponse], error) {
	return s.status(s.player.Move(req.Msg.From, req.Msg.To))
}

// Clear empties the queue.
func (s *PlayerService) Clear(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.player.Clear()
	return s.status(nil)
}

// StartRadio starts a radio seeded by a track.
func (s *PlayerService) StartRadio(
	ctx context.Context,
	req *connect.Request[StartRadioRequest],
) (*connect.Response[RadioResponse], error) {
	id, err := s.player.StartRadio(ctx, req.Msg.TrackID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RadioResponse{SessionID: id}), nil
}

// StartPlaylistRadio starts a radio over a remote playlist.
func (s *PlayerService) StartPlaylistRadio(
	ctx context.Context,
	req *connect.Request[StartPlaylistRadioRequest],
) (*connect.Response[RadioResponse], error) {
	if req.Msg.Playlist == "" {
		return nil, invalidArgument("playlist is required")
	}
	id, err := s.player.StartPlaylistRadio(ctx, req.Msg.Playlist)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RadioResponse{SessionID: id}), nil
}

// StopRadio stops the running radio.
func (s *PlayerService) StopRadio(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.player.StopRadio()
	return s.status(nil)
}

// ToggleLike flips the like state of a track or the current item.
func (s *PlayerService) ToggleLike(
	ctx context.Context,
	req *connect.Request[ToggleLikeRequest],
) (*connect.Response[ToggleResponse], error) {
	var likedAt *time.Time
	var err error
	if req.Msg.TrackID == "" {
		likedAt, err = s.player.ToggleLikeCurrent(ctx)
	} else {
		likedAt, err = s.player.ToggleLike(ctx, req.Msg.TrackID)
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ToggleResponse{Active: likedAt != nil, Timestamp: likedAt}), nil
}

// ToggleBookmark flips the bookmark of an album.
func (s *PlayerService) ToggleBookmark(
	ctx context.Context,
	req *connect.Request[ToggleBookmarkRequest],
) (*connect.Response[ToggleResponse], error) {
	if req.Msg.AlbumID == "" {
		return nil, invalidArgument("album_id is required")
	}
	at, err := s.player.ToggleBookmark(ctx, req.Msg.AlbumID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ToggleResponse{Active: at != nil, Timestamp: at}), nil
}

// Watch streams player and library notifications, starting with a snapshot.
func (s *PlayerService) Watch(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[Notification],
) error {
	notifManager := s.player.Notifications()
	sub := notifManager.Subscribe()
	defer notifManager.Unsubscribe(sub.ID)

	// The snapshot goes through the subscription so it is ordered with
	// notifications broadcast meanwhile
	if !notifManager.Send(sub.ID, s.player.SnapshotNotification()) {
		zlog.Warn().Msgf("rpc: watch: snapshot not delivered: subscription=%s", sub.ID)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.player.Done():
			return nil
		case n, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := stream.Send(toNotification(n)); err != nil {
				return err
			}
		}
	}
}
