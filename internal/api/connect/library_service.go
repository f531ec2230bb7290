package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/app/library"
	"github.com/osa030/quaver/internal/domain/playlist"
	"github.com/osa030/quaver/internal/domain/song"
)

// LibraryServiceName is the fully-qualified name of the library service.
const LibraryServiceName = "quaver.v1.LibraryService"

// Library service procedures.
const (
	LibrarySearchProcedure             = "/" + LibraryServiceName + "/Search"
	LibrarySearchHistoryProcedure      = "/" + LibraryServiceName + "/SearchHistory"
	LibraryDeleteSearchProcedure       = "/" + LibraryServiceName + "/DeleteSearch"
	LibraryClearSearchHistoryProcedure = "/" + LibraryServiceName + "/ClearSearchHistory"
	LibraryLikedSongsProcedure         = "/" + LibraryServiceName + "/LikedSongs"
	LibraryBookmarkedAlbumsProcedure   = "/" + LibraryServiceName + "/BookmarkedAlbums"
	LibraryCreatePlaylistProcedure     = "/" + LibraryServiceName + "/CreatePlaylist"
	LibraryAddToPlaylistProcedure      = "/" + LibraryServiceName + "/AddToPlaylist"
	LibraryGetPlaylistProcedure        = "/" + LibraryServiceName + "/GetPlaylist"
	LibraryListPlaylistsProcedure      = "/" + LibraryServiceName + "/ListPlaylists"
	LibraryDeletePlaylistProcedure     = "/" + LibraryServiceName + "/DeletePlaylist"
)

// Catalog resolves and searches tracks.
type Catalog interface {
	GetTrack(ctx context.Context, ref string) (*song.Song, error)
	Search(ctx context.Context, query string, limit int) ([]song.Song, error)
}

// LibraryService implements the LibraryService RPC.
type LibraryService struct {
	library *library.Service
	catalog Catalog
}

// NewLibraryService creates a new LibraryService.
func NewLibraryService(lib *library.Service, catalog Catalog) *LibraryService {
	return &LibraryService{library: lib, catalog: catalog}
}

// NewLibraryServiceHandler builds an HTTP handler from the service
// implementation.
func NewLibraryServiceHandler(s *LibraryService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	return "/" + LibraryServiceName + "/", serviceHandler([]route{
		unaryRoute(LibrarySearchProcedure, s.Search, opts),
		unaryRoute(LibrarySearchHistoryProcedure, s.SearchHistory, opts),
		unaryRoute(LibraryDeleteSearchProcedure, s.DeleteSearch, opts),
		unaryRoute(LibraryClearSearchHistoryProcedure, s.ClearSearchHistory, opts),
		unaryRoute(LibraryLikedSongsProcedure, s.LikedSongs, opts),
		unaryRoute(LibraryBookmarkedAlbumsProcedure, s.BookmarkedAlbums, opts),
		unaryRoute(LibraryCreatePlaylistProcedure, s.CreatePlaylist, opts),
		unaryRoute(LibraryAddToPlaylistProcedure, s.AddToPlaylist, opts),
		unaryRoute(LibraryGetPlaylistProcedure, s.GetPlaylist, opts),
		unaryRoute(LibraryListPlaylistsProcedure, s.ListPlaylists, opts),
		unaryRoute(LibraryDeletePlaylistProcedure, s.DeletePlaylist, opts),
	})
}

// Search searches the catalog and records the query in the history.
func (s *LibraryService) Search(
	ctx context.Context,
	req *connect.Request[SearchRequest],
) (*connect.Response[TracksResponse], error) {
	if req.Msg.Query == "" {
		return nil, invalidArgument("query is required")
	}
	songs, err := s.catalog.Search(ctx, req.Msg.Query, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := s.library.RecordSearch(ctx, req.Msg.Query); err != nil {
		zlog.Warn().Err(err).Msgf("rpc: failed to record search: query=%q", req.Msg.Query)
	}
	return connect.NewResponse(&TracksResponse{Tracks: songTracks(songs)}), nil
}

// SearchHistory lists search history entries.
func (s *LibraryService) SearchHistory(
	ctx context.Context,
	req *connect.Request[SearchHistoryRequest],
) (*connect.Response[SearchHistoryResponse], error) {
	queries, err := s.library.SearchHistory(ctx, req.Msg.Filter)
	if err != nil {
		return nil, toConnectError(err)
	}
	entries := make([]SearchEntry, len(queries))
	for i, q := range queries {
		entries[i] = SearchEntry{ID: q.ID, Query: q.Query, SearchedAt: q.SearchedAt}
	}
	return connect.NewResponse(&SearchHistoryResponse{Entries: entries}), nil
}

// DeleteSearch deletes a search history entry.
func (s *LibraryService) DeleteSearch(
	ctx context.Context,
	req *connect.Request[DeleteSearchRequest],
) (*connect.Response[Empty], error) {
	if err := s.library.DeleteSearch(ctx, req.Msg.ID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// ClearSearchHistory deletes all search history entries.
func (s *LibraryService) ClearSearchHistory(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[Empty], error) {
	if err := s.library.ClearSearchHistory(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// LikedSongs lists liked songs.
func (s *LibraryService) LikedSongs(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[TracksResponse], error) {
	songs, err := s.library.LikedSongs(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TracksResponse{Tracks: songTracks(songs)}), nil
}

// BookmarkedAlbums lists bookmarked albums.
func (s *LibraryService) BookmarkedAlbums(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[AlbumsResponse], error) {
	albums, err := s.library.BookmarkedAlbums(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	resp := &AlbumsResponse{Albums: make([]Album, len(albums))}
	for i, a := range albums {
		resp.Albums[i] = toAlbum(a)
	}
	return connect.NewResponse(resp), nil
}

// CreatePlaylist creates a local playlist.
func (s *LibraryService) CreatePlaylist(
	ctx context.Context,
	req *connect.Request[CreatePlaylistRequest],
) (*connect.Response[Playlist], error) {
	p, err := s.library.CreatePlaylist(ctx, req.Msg.Name)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	msg := toPlaylist(*p)
	return connect.NewResponse(&msg), nil
}

// AddToPlaylist resolves tracks and appends them to a playlist.
func (s *LibraryService) AddToPlaylist(
	ctx context.Context,
	req *connect.Request[AddToPlaylistRequest],
) (*connect.Response[Playlist], error) {
	if req.Msg.PlaylistID == "" || len(req.Msg.TrackIDs) == 0 {
		return nil, invalidArgument("playlist_id and track_ids are required")
	}
	songs := make([]song.Song, 0, len(req.Msg.TrackIDs))
	for _, ref := range req.Msg.TrackIDs {
		sg, err := s.catalog.GetTrack(ctx, ref)
		if err != nil {
			return nil, toConnectError(err)
		}
		songs = append(songs, *sg)
	}
	if err := s.library.AddToPlaylist(ctx, req.Msg.PlaylistID, songs...); err != nil {
		return nil, toConnectError(err)
	}
	p, err := s.library.Playlist(ctx, req.Msg.PlaylistID)
	if err != nil {
		return nil, toConnectError(err)
	}
	msg := toPlaylist(*p)
	return connect.NewResponse(&msg), nil
}

// GetPlaylist returns a playlist with its tracks.
func (s *LibraryService) GetPlaylist(
	ctx context.Context,
	req *connect.Request[PlaylistRequest],
) (*connect.Response[Playlist], error) {
	p, err := s.library.Playlist(ctx, req.Msg.PlaylistID)
	if err != nil {
		return nil, toConnectError(err)
	}
	msg := toPlaylist(*p)
	return connect.NewResponse(&msg), nil
}

// ListPlaylists lists playlist previews.
func (s *LibraryService) ListPlaylists(
	ctx context.Context,
	req *connect.Request[ListPlaylistsRequest],
) (*connect.Response[PlaylistsResponse], error) {
	previews, err := s.library.PlaylistPreviews(ctx, playlist.ParseSortBy(req.Msg.SortBy), playlist.ParseSortOrder(req.Msg.Order))
	if err != nil {
		return nil, toConnectError(err)
	}
	resp := &PlaylistsResponse{Playlists: make([]Playlist, len(previews))}
	for i, p := range previews {
		resp.Playlists[i] = Playlist{
			ID:        p.ID,
			Name:      p.Name,
			BrowseID:  p.BrowseID,
			CreatedAt: p.CreatedAt,
			SongCount: p.SongCount,
		}
	}
	return connect.NewResponse(resp), nil
}

// DeletePlaylist deletes a playlist.
func (s *LibraryService) DeletePlaylist(
	ctx context.Context,
	req *connect.Request[PlaylistRequest],
) (*connect.Response[Empty], error) {
	if err := s.library.DeletePlaylist(ctx, req.Msg.PlaylistID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}
