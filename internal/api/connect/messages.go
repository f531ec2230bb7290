package connect

import (
	"time"

	"github.com/osa030/quaver/internal/app/notification"
	"github.com/osa030/quaver/internal/app/player"
	"github.com/osa030/quaver/internal/app/radio"
	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/domain/playlist"
	"github.com/osa030/quaver/internal/domain/song"
)

// Empty is the message of calls without arguments or results.
type Empty struct{}

// Track is the wire form of a queue item or song.
type Track struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Artists    []string   `json:"artists,omitempty"`
	AlbumID    string     `json:"album_id,omitempty"`
	Album      string     `json:"album,omitempty"`
	ArtworkURL string     `json:"artwork_url,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	Explicit   bool       `json:"explicit,omitempty"`
	Source     string     `json:"source,omitempty"`
	LikedAt    *time.Time `json:"liked_at,omitempty"`
}

// Album is the wire form of an album.
type Album struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	ArtworkURL   string     `json:"artwork_url,omitempty"`
	Year         string     `json:"year,omitempty"`
	Authors      string     `json:"authors,omitempty"`
	ShareURL     string     `json:"share_url,omitempty"`
	BookmarkedAt *time.Time `json:"bookmarked_at,omitempty"`
	Tracks       []Track    `json:"tracks,omitempty"`
}

// RadioInfo is the wire form of the running radio.
type RadioInfo struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	StartedAt time.Time `json:"started_at"`
	Fetching  bool      `json:"fetching"`
	Exhausted bool      `json:"exhausted"`
	Appended  int       `json:"appended"`
}

// StatusResponse is the player status.
type StatusResponse struct {
	Queue      []Track    `json:"queue"`
	Index      int        `json:"index"`
	Current    *Track     `json:"current,omitempty"`
	State      string     `json:"state"`
	RepeatMode string     `json:"repeat_mode"`
	PositionMs int64      `json:"position_ms"`
	Scrubbing  bool       `json:"scrubbing,omitempty"`
	Radio      *RadioInfo `json:"radio,omitempty"`
}

// IndexRequest addresses a queue position.
type IndexRequest struct {
	Index int `json:"index"`
}

// PositionRequest carries a playback position.
type PositionRequest struct {
	PositionMs int64 `json:"position_ms"`
}

// RepeatModeRequest sets the repeat mode ("off", "one", "all").
type RepeatModeRequest struct {
	Mode string `json:"mode"`
}

// MoveRequest moves a queue item.
type MoveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// TracksRequest lists track references (IDs, URLs or URIs).
type TracksRequest struct {
	TrackIDs []string `json:"track_ids"`
}

// TracksResponse lists tracks.
type TracksResponse struct {
	Tracks []Track `json:"tracks"`
}

// PlayTracksRequest replaces the queue with tracks.
type PlayTracksRequest struct {
	TrackIDs []string `json:"track_ids"`
	Index    int      `json:"index"`
	Shuffle  bool     `json:"shuffle"`
}

// PlayAlbumRequest replaces the queue with an album.
type PlayAlbumRequest struct {
	AlbumID string `json:"album_id"`
	Index   int    `json:"index"`
	Shuffle bool   `json:"shuffle"`
}

// PlayPlaylistRequest replaces the queue with a local playlist.
type PlayPlaylistRequest struct {
	PlaylistID string `json:"playlist_id"`
	Index      int    `json:"index"`
	Shuffle    bool   `json:"shuffle"`
}

// PlayLikedRequest replaces the queue with the liked songs.
type PlayLikedRequest struct {
	Shuffle bool `json:"shuffle"`
}

// StartRadioRequest starts a radio. An empty track ID seeds it with the
// current item.
type StartRadioRequest struct {
	TrackID string `json:"track_id"`
}

// StartPlaylistRadioRequest starts a radio over a remote playlist.
type StartPlaylistRadioRequest struct {
	Playlist string `json:"playlist"`
}

// RadioResponse identifies a started radio.
type RadioResponse struct {
	SessionID string `json:"session_id"`
}

// ToggleLikeRequest toggles a like. An empty track ID targets the current item.
type ToggleLikeRequest struct {
	TrackID string `json:"track_id"`
}

// ToggleBookmarkRequest toggles an album bookmark.
type ToggleBookmarkRequest struct {
	AlbumID string `json:"album_id"`
}

// ToggleResponse is the state after a toggle.
type ToggleResponse struct {
	Active    bool       `json:"active"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Notification is a streamed player or library event.
type Notification struct {
	SequenceNo uint64     `json:"sequence_no"`
	Kind       string     `json:"kind"`
	Time       time.Time  `json:"time"`
	Item       *Track     `json:"item,omitempty"`
	Index      int        `json:"index"`
	QueueLen   int        `json:"queue_len"`
	State      string     `json:"state,omitempty"`
	RepeatMode string     `json:"repeat_mode,omitempty"`
	TargetID   string     `json:"target_id,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// SearchRequest searches the catalog.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SearchHistoryRequest lists search history entries containing Filter.
type SearchHistoryRequest struct {
	Filter string `json:"filter"`
}

// SearchEntry is a search history entry.
type SearchEntry struct {
	ID         int64     `json:"id"`
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searched_at"`
}

// SearchHistoryResponse lists search history entries.
type SearchHistoryResponse struct {
	Entries []SearchEntry `json:"entries"`
}

// DeleteSearchRequest deletes a search history entry.
type DeleteSearchRequest struct {
	ID int64 `json:"id"`
}

// AlbumsResponse lists albums.
type AlbumsResponse struct {
	Albums []Album `json:"albums"`
}

// Playlist is the wire form of a local playlist.
type Playlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BrowseID  string    `json:"browse_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	SongCount int       `json:"song_count"`
	Tracks    []Track   `json:"tracks,omitempty"`
}

// CreatePlaylistRequest creates a playlist.
type CreatePlaylistRequest struct {
	Name string `json:"name"`
}

// AddToPlaylistRequest appends tracks to a playlist.
type AddToPlaylistRequest struct {
	PlaylistID string   `json:"playlist_id"`
	TrackIDs   []string `json:"track_ids"`
}

// PlaylistRequest addresses a playlist.
type PlaylistRequest struct {
	PlaylistID string `json:"playlist_id"`
}

// ListPlaylistsRequest lists playlists ("name", "song_count", "date_added";
// "asc", "desc").
type ListPlaylistsRequest struct {
	SortBy string `json:"sort_by"`
	Order  string `json:"order"`
}

// PlaylistsResponse lists playlists.
type PlaylistsResponse struct {
	Playlists []Playlist `json:"playlists"`
}

func toTrack(it media.Item) Track {
	return Track{
		ID:         it.ID,
		Title:      it.Title,
		Artists:    it.Artists,
		AlbumID:    it.AlbumID,
		Album:      it.Album,
		ArtworkURL: it.ArtworkURL,
		DurationMs: it.Duration.Milliseconds(),
		Explicit:   it.Explicit,
		Source:     string(it.Source),
	}
}

func toTracks(items []media.Item) []Track {
	tracks := make([]Track, len(items))
	for i, it := range items {
		tracks[i] = toTrack(it)
	}
	return tracks
}

func songTrack(s song.Song) Track {
	t := toTrack(media.FromSong(s))
	t.Source = ""
	t.LikedAt = s.LikedAt
	return t
}

func songTracks(songs []song.Song) []Track {
	tracks := make([]Track, len(songs))
	for i, s := range songs {
		tracks[i] = songTrack(s)
	}
	return tracks
}

func toAlbum(a song.Album) Album {
	return Album{
		ID:           a.ID,
		Title:        a.Title,
		ArtworkURL:   a.ThumbnailURL,
		Year:         a.Year,
		Authors:      a.AuthorsText,
		ShareURL:     a.ShareURL,
		BookmarkedAt: a.BookmarkedAt,
		Tracks:       songTracks(a.Songs),
	}
}

func toPlaylist(p playlist.Playlist) Playlist {
	return Playlist{
		ID:        p.ID,
		Name:      p.Name,
		BrowseID:  p.BrowseID,
		CreatedAt: p.CreatedAt,
		SongCount: len(p.Songs),
		Tracks:    songTracks(p.Songs),
	}
}

func toStatus(st player.Status) *StatusResponse {
	snap := st.Playback
	resp := &StatusResponse{
		Queue:      toTracks(snap.Queue),
		Index:      snap.Index,
		State:      snap.State.String(),
		RepeatMode: snap.RepeatMode.String(),
		PositionMs: snap.Position.Milliseconds(),
		Scrubbing:  snap.Scrubbing,
		Radio:      toRadioInfo(st.Radio),
	}
	if snap.Current != nil {
		current := toTrack(*snap.Current)
		current.LikedAt = st.LikedAt
		resp.Current = &current
	}
	return resp
}

func toRadioInfo(info radio.Info) *RadioInfo {
	if !info.Active {
		return nil
	}
	return &RadioInfo{
		ID:        info.ID,
		Endpoint:  info.Endpoint.String(),
		StartedAt: info.StartedAt,
		Fetching:  info.Fetching,
		Exhausted: info.Exhausted,
		Appended:  info.Appended,
	}
}

func toNotification(n notification.Notification) *Notification {
	msg := &Notification{
		SequenceNo: n.SequenceNo,
		Kind:       string(n.Kind),
		Time:       n.Time,
		Index:      n.Index,
		QueueLen:   n.QueueLen,
		State:      n.State,
		RepeatMode: n.RepeatMode,
		TargetID:   n.TargetID,
		Timestamp:  n.Timestamp,
	}
	if n.Item != nil {
		item := toTrack(*n.Item)
		msg.Item = &item
	}
	return msg
}
