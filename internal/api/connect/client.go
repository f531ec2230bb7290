package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// Client is a Connect client for the player and library services.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	token      string
}

// NewClient creates a new client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

func callUnary[Req, Res any](ctx context.Context, c *Client, procedure string, msg *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](c.httpClient, c.baseURL+procedure, WithJSON())
	req := connect.NewRequest(msg)
	req.Header().Set(TokenHeader, c.token)
	resp, err := client.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Status returns the player status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return callUnary[Empty, StatusResponse](ctx, c, PlayerGetStatusProcedure, &Empty{})
}

// Control invokes an argument-less player procedure such as
// PlayerPlayProcedure or PlayerNextProcedure.
func (c *Client) Control(ctx context.Context, procedure string) (*StatusResponse, error) {
	return callUnary[Empty, StatusResponse](ctx, c, procedure, &Empty{})
}

// SeekToIndex plays the queue item at index.
func (c *Client) SeekToIndex(ctx context.Context, index int) (*StatusResponse, error) {
	return callUnary[IndexRequest, StatusResponse](ctx, c, PlayerSeekToIndexProcedure, &IndexRequest{Index: index})
}

// Seek moves the position of the current item.
func (c *Client) Seek(ctx context.Context, positionMs int64) (*StatusResponse, error) {
	return callUnary[PositionRequest, StatusResponse](ctx, c, PlayerSeekProcedure, &PositionRequest{PositionMs: positionMs})
}

// SetRepeatMode sets the repeat mode.
func (c *Client) SetRepeatMode(ctx context.Context, mode string) (*StatusResponse, error) {
	return callUnary[RepeatModeRequest, StatusResponse](ctx, c, PlayerSetRepeatModeProcedure, &RepeatModeRequest{Mode: mode})
}

// Enqueue appends tracks.
func (c *Client) Enqueue(ctx context.Context, trackIDs ...string) (*TracksResponse, error) {
	return callUnary[TracksRequest, TracksResponse](ctx, c, PlayerEnqueueProcedure, &TracksRequest{TrackIDs: trackIDs})
}

// PlayNext inserts tracks after the current item.
func (c *Client) PlayNext(ctx context.Context, trackIDs ...string) (*TracksResponse, error) {
	return callUnary[TracksRequest, TracksResponse](ctx, c, PlayerPlayNextProcedure, &TracksRequest{TrackIDs: trackIDs})
}

// PlaySongs replaces the queue with tracks.
func (c *Client) PlaySongs(ctx context.Context, req *PlayTracksRequest) (*StatusResponse, error) {
	return callUnary[PlayTracksRequest, StatusResponse](ctx, c, PlayerPlaySongsProcedure, req)
}

// PlayAlbum replaces the queue with an album.
func (c *Client) PlayAlbum(ctx context.Context, req *PlayAlbumRequest) (*StatusResponse, error) {
	return callUnary[PlayAlbumRequest, StatusResponse](ctx, c, PlayerPlayAlbumProcedure, req)
}

// PlayPlaylist replaces the queue with a local playlist.
func (c *Client) PlayPlaylist(ctx context.Context, req *PlayPlaylistRequest) (*StatusResponse, error) {
	return callUnary[PlayPlaylistRequest, StatusResponse](ctx, c, PlayerPlayPlaylistProcedure, req)
}

// PlayLiked replaces the queue with the liked songs.
func (c *Client) PlayLiked(ctx context.Context, shuffle bool) (*StatusResponse, error) {
	return callUnary[PlayLikedRequest, StatusResponse](ctx, c, PlayerPlayLikedProcedure, &PlayLikedRequest{Shuffle: shuffle})
}

// RemoveAt removes a queue item.
func (c *Client) RemoveAt(ctx context.Context, index int) (*StatusResponse, error) {
	return callUnary[IndexRequest, StatusResponse](ctx, c, PlayerRemoveAtProcedure, &IndexRequest{Index: index})
}

// Move moves a queue item.
func (c *Client) Move(ctx context.Context, from, to int) (*StatusResponse, error) {
	return callUnary[MoveRequest, StatusResponse](ctx, c, PlayerMoveProcedure, &MoveRequest{From: from, To: to})
}

// StartRadio starts a radio seeded by a track, or by the current item when
// trackID is empty.
func (c *Client) StartRadio(ctx context.Context, trackID string) (*RadioResponse, error) {
	return callUnary[StartRadioRequest, RadioResponse](ctx, c, PlayerStartRadioProcedure, &StartRadioRequest{TrackID: trackID})
}

// StartPlaylistRadio starts a radio over a remote playlist.
func (c *Client) StartPlaylistRadio(ctx context.Context, playlist string) (*RadioResponse, error) {
	return callUnary[StartPlaylistRadioRequest, RadioResponse](ctx, c, PlayerStartPlaylistRadioProcedure, &StartPlaylistRadioRequest{Playlist: playlist})
}

// ToggleLike flips the like of a track, or of the current item when trackID
// is empty.
func (c *Client) ToggleLike(ctx context.Context, trackID string) (*ToggleResponse, error) {
	return callUnary[ToggleLikeRequest, ToggleResponse](ctx, c, PlayerToggleLikeProcedure, &ToggleLikeRequest{TrackID: trackID})
}

// ToggleBookmark flips the bookmark of an album.
func (c *Client) ToggleBookmark(ctx context.Context, albumID string) (*ToggleResponse, error) {
	return callUnary[ToggleBookmarkRequest, ToggleResponse](ctx, c, PlayerToggleBookmarkProcedure, &ToggleBookmarkRequest{AlbumID: albumID})
}

// Watch streams notifications to fn until ctx is done or the stream ends.
func (c *Client) Watch(ctx context.Context, fn func(*Notification)) error {
	client := connect.NewClient[Empty, Notification](c.httpClient, c.baseURL+PlayerWatchProcedure, WithJSON())
	req := connect.NewRequest(&Empty{})
	req.Header().Set(TokenHeader, c.token)
	stream, err := client.CallServerStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		fn(stream.Msg())
	}
	return stream.Err()
}

// Search searches the catalog.
func (c *Client) Search(ctx context.Context, query string, limit int) (*TracksResponse, error) {
	return callUnary[SearchRequest, TracksResponse](ctx, c, LibrarySearchProcedure, &SearchRequest{Query: query, Limit: limit})
}

// SearchHistory lists search history entries.
func (c *Client) SearchHistory(ctx context.Context, filter string) (*SearchHistoryResponse, error) {
	return callUnary[SearchHistoryRequest, SearchHistoryResponse](ctx, c, LibrarySearchHistoryProcedure, &SearchHistoryRequest{Filter: filter})
}

// ClearSearchHistory deletes all search history entries.
func (c *Client) ClearSearchHistory(ctx context.Context) error {
	_, err := callUnary[Empty, Empty](ctx, c, LibraryClearSearchHistoryProcedure, &Empty{})
	return err
}

// LikedSongs lists liked songs.
func (c *Client) LikedSongs(ctx context.Context) (*TracksResponse, error) {
	return callUnary[Empty, TracksResponse](ctx, c, LibraryLikedSongsProcedure, &Empty{})
}

// BookmarkedAlbums lists bookmarked albums.
func (c *Client) BookmarkedAlbums(ctx context.Context) (*AlbumsResponse, error) {
	return callUnary[Empty, AlbumsResponse](ctx, c, LibraryBookmarkedAlbumsProcedure, &Empty{})
}

// CreatePlaylist creates a local playlist.
func (c *Client) CreatePlaylist(ctx context.Context, name string) (*Playlist, error) {
	return callUnary[CreatePlaylistRequest, Playlist](ctx, c, LibraryCreatePlaylistProcedure, &CreatePlaylistRequest{Name: name})
}

// AddToPlaylist appends tracks to a playlist.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID string, trackIDs ...string) (*Playlist, error) {
	return callUnary[AddToPlaylistRequest, Playlist](ctx, c, LibraryAddToPlaylistProcedure, &AddToPlaylistRequest{PlaylistID: playlistID, TrackIDs: trackIDs})
}

// ListPlaylists lists playlist previews.
func (c *Client) ListPlaylists(ctx context.Context, sortBy, order string) (*PlaylistsResponse, error) {
	return callUnary[ListPlaylistsRequest, PlaylistsResponse](ctx, c, LibraryListPlaylistsProcedure, &ListPlaylistsRequest{SortBy: sortBy, Order: order})
}

// DeletePlaylist deletes a playlist.
func (c *Client) DeletePlaylist(ctx context.Context, playlistID string) error {
	_, err := callUnary[PlaylistRequest, Empty](ctx, c, LibraryDeletePlaylistProcedure, &PlaylistRequest{PlaylistID: playlistID})
	return err
}
