// Package main provides the player CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/quaver/internal/api/connect"
)

var (
	app    = kingpin.New("quaver-playerctl", "quaver player client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "RPC token (or set QUAVER_TOKEN env)").Envar("QUAVER_TOKEN").String()

	statusCmd    = app.Command("status", "Show player status and queue")
	playCmd      = app.Command("play", "Start or resume playback")
	pauseCmd     = app.Command("pause", "Pause playback")
	stopCmd      = app.Command("stop", "Stop playback")
	nextCmd      = app.Command("next", "Play the next item")
	prevCmd      = app.Command("prev", "Play the previous item").Alias("previous")
	clearCmd     = app.Command("clear", "Stop the radio and empty the queue")
	stopRadioCmd = app.Command("stop-radio", "Stop the running radio")

	jumpCmd   = app.Command("jump", "Play the queue item at an index")
	jumpIndex = jumpCmd.Arg("index", "Queue index").Required().Int()

	seekCmd = app.Command("seek", "Seek within the current item")
	seekPos = seekCmd.Arg("position", "Position (e.g. 1m30s)").Required().Duration()

	repeatCmd  = app.Command("repeat", "Set the repeat mode")
	repeatMode = repeatCmd.Arg("mode", "off, one or all").Required().Enum("off", "one", "all")

	enqueueCmd    = app.Command("enqueue", "Append tracks to the queue").Alias("add")
	enqueueTracks = enqueueCmd.Arg("tracks", "Track IDs or URLs").Required().Strings()

	playNextCmd    = app.Command("play-next", "Insert tracks after the current item")
	playNextTracks = playNextCmd.Arg("tracks", "Track IDs or URLs").Required().Strings()

	playSongsCmd     = app.Command("play-songs", "Replace the queue with tracks")
	playSongsTracks  = playSongsCmd.Arg("tracks", "Track IDs or URLs").Required().Strings()
	playSongsIndex   = playSongsCmd.Flag("index", "Index to start at").Default("0").Int()
	playSongsShuffle = playSongsCmd.Flag("shuffle", "Shuffle the tracks").Bool()

	albumCmd     = app.Command("album", "Replace the queue with an album")
	albumID      = albumCmd.Arg("album", "Album ID or URL").Required().String()
	albumIndex   = albumCmd.Flag("index", "Index to start at").Default("0").Int()
	albumShuffle = albumCmd.Flag("shuffle", "Shuffle the album").Bool()

	likedCmd     = app.Command("play-liked", "Replace the queue with liked songs")
	likedShuffle = likedCmd.Flag("shuffle", "Shuffle the songs").Bool()

	removeCmd   = app.Command("remove", "Remove a queue item")
	removeIndex = removeCmd.Arg("index", "Queue index").Required().Int()

	moveCmd  = app.Command("move", "Move a queue item")
	moveFrom = moveCmd.Arg("from", "Source index").Required().Int()
	moveTo   = moveCmd.Arg("to", "Target index").Required().Int()

	radioCmd   = app.Command("radio", "Start a radio from a track (default: the current item)")
	radioTrack = radioCmd.Arg("track", "Track ID or URL").String()

	playlistRadioCmd = app.Command("playlist-radio", "Start a radio over a remote playlist")
	playlistRadioRef = playlistRadioCmd.Arg("playlist", "Playlist ID or URL").Required().String()

	likeCmd   = app.Command("like", "Toggle the like of a track (default: the current item)")
	likeTrack = likeCmd.Arg("track", "Track ID or URL").String()

	bookmarkCmd   = app.Command("bookmark", "Toggle the bookmark of an album")
	bookmarkAlbum = bookmarkCmd.Arg("album", "Album ID or URL").Required().String()

	searchCmd   = app.Command("search", "Search the catalog")
	searchQuery = searchCmd.Arg("query", "Search query").Required().Strings()
	searchLimit = searchCmd.Flag("limit", "Maximum results").Default("10").Int()

	historyCmd    = app.Command("history", "Show search history")
	historyFilter = historyCmd.Arg("filter", "Substring filter").String()
	historyClear  = historyCmd.Flag("clear", "Clear the history").Bool()

	likesCmd     = app.Command("likes", "List liked songs")
	bookmarksCmd = app.Command("bookmarks", "List bookmarked albums")

	playlistsCmd   = app.Command("playlists", "List local playlists")
	playlistsSort  = playlistsCmd.Flag("sort", "name, song_count or date_added").Default("date_added").String()
	playlistsOrder = playlistsCmd.Flag("order", "asc or desc").Default("desc").String()

	newPlaylistCmd  = app.Command("new-playlist", "Create a local playlist")
	newPlaylistName = newPlaylistCmd.Arg("name", "Playlist name").Required().String()

	addToPlaylistCmd    = app.Command("add-to-playlist", "Append tracks to a local playlist")
	addToPlaylistID     = addToPlaylistCmd.Arg("playlist", "Playlist ID").Required().String()
	addToPlaylistTracks = addToPlaylistCmd.Arg("tracks", "Track IDs or URLs").Required().Strings()

	playPlaylistCmd     = app.Command("play-playlist", "Replace the queue with a local playlist")
	playPlaylistID      = playPlaylistCmd.Arg("playlist", "Playlist ID").Required().String()
	playPlaylistShuffle = playPlaylistCmd.Flag("shuffle", "Shuffle the playlist").Bool()

	deletePlaylistCmd = app.Command("delete-playlist", "Delete a local playlist")
	deletePlaylistID  = deletePlaylistCmd.Arg("playlist", "Playlist ID").Required().String()

	watchCmd = app.Command("watch", "Stream player notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: token is required (use --token or QUAVER_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewClient(nil, *server, *token)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, client, command); err != nil {
		fmt.Printf("Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func execute(ctx context.Context, c *apiconnect.Client, command string) error {
	switch command {
	case statusCmd.FullCommand():
		return printStatus(c.Status(ctx))
	case playCmd.FullCommand():
		return printStatus(c.Control(ctx, apiconnect.PlayerPlayProcedure))
	case pauseCmd.FullCommand():
		return printStatus(c.Control(ctx, apiconnect.PlayerPauseProcedure))
	case stopCmd.FullCommand():
		return printStatus(c.Control(ctx, apiconnect.PlayerStopProcedure))
	case nextCmd.FullCommand():
		return printStatus(c.Control(ctx, apiconnect.PlayerNextProcedure))
	case prevCmd.FullCommand():
		return printStatus(c.Control(ctx, apiconnect.PlayerPreviousProcedure))
	case clearCmd.FullCommand():
		return printStatus(c.Control(ctx, apiconnect.PlayerClearProcedure))
	case stopRadioCmd.FullCommand():
		return printStatus(c.Control(ctx, apiconnect.PlayerStopRadioProcedure))
	case jumpCmd.FullCommand():
		return printStatus(c.SeekToIndex(ctx, *jumpIndex))
	case seekCmd.FullCommand():
		return printStatus(c.Seek(ctx, seekPos.Milliseconds()))
	case repeatCmd.FullCommand():
		return printStatus(c.SetRepeatMode(ctx, *repeatMode))
	case enqueueCmd.FullCommand():
		resp, err := c.Enqueue(ctx, *enqueueTracks...)
		return printTracks("Enqueued", resp, err)
	case playNextCmd.FullCommand():
		resp, err := c.PlayNext(ctx, *playNextTracks...)
		return printTracks("Playing next", resp, err)
	case playSongsCmd.FullCommand():
		return printStatus(c.PlaySongs(ctx, &apiconnect.PlayTracksRequest{
			TrackIDs: *playSongsTracks,
			Index:    *playSongsIndex,
			Shuffle:  *playSongsShuffle,
		}))
	case albumCmd.FullCommand():
		return printStatus(c.PlayAlbum(ctx, &apiconnect.PlayAlbumRequest{
			AlbumID: *albumID,
			Index:   *albumIndex,
			Shuffle: *albumShuffle,
		}))
	case likedCmd.FullCommand():
		return printStatus(c.PlayLiked(ctx, *likedShuffle))
	case removeCmd.FullCommand():
		return printStatus(c.RemoveAt(ctx, *removeIndex))
	case moveCmd.FullCommand():
		return printStatus(c.Move(ctx, *moveFrom, *moveTo))
	case radioCmd.FullCommand():
		resp, err := c.StartRadio(ctx, *radioTrack)
		if err != nil {
			return err
		}
		fmt.Printf("Radio started: session=%s\n", resp.SessionID)
		return nil
	case playlistRadioCmd.FullCommand():
		resp, err := c.StartPlaylistRadio(ctx, *playlistRadioRef)
		if err != nil {
			return err
		}
		fmt.Printf("Playlist radio started: session=%s\n", resp.SessionID)
		return nil
	case likeCmd.FullCommand():
		resp, err := c.ToggleLike(ctx, *likeTrack)
		return printToggle("Liked", resp, err)
	case bookmarkCmd.FullCommand():
		resp, err := c.ToggleBookmark(ctx, *bookmarkAlbum)
		return printToggle("Bookmarked", resp, err)
	case searchCmd.FullCommand():
		resp, err := c.Search(ctx, strings.Join(*searchQuery, " "), *searchLimit)
		return printTracks("Results", resp, err)
	case historyCmd.FullCommand():
		if *historyClear {
			return c.ClearSearchHistory(ctx)
		}
		return printHistory(c.SearchHistory(ctx, *historyFilter))
	case likesCmd.FullCommand():
		resp, err := c.LikedSongs(ctx)
		return printTracks("Liked songs", resp, err)
	case bookmarksCmd.FullCommand():
		return printAlbums(c.BookmarkedAlbums(ctx))
	case playlistsCmd.FullCommand():
		return printPlaylists(c.ListPlaylists(ctx, *playlistsSort, *playlistsOrder))
	case newPlaylistCmd.FullCommand():
		return printPlaylist(c.CreatePlaylist(ctx, *newPlaylistName))
	case addToPlaylistCmd.FullCommand():
		return printPlaylist(c.AddToPlaylist(ctx, *addToPlaylistID, *addToPlaylistTracks...))
	case playPlaylistCmd.FullCommand():
		return printStatus(c.PlayPlaylist(ctx, &apiconnect.PlayPlaylistRequest{
			PlaylistID: *playPlaylistID,
			Shuffle:    *playPlaylistShuffle,
		}))
	case deletePlaylistCmd.FullCommand():
		if err := c.DeletePlaylist(ctx, *deletePlaylistID); err != nil {
			return err
		}
		fmt.Println("Playlist deleted")
		return nil
	case watchCmd.FullCommand():
		err := c.Watch(ctx, printNotification)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown command: %s", command)
}

func printStatus(s *apiconnect.StatusResponse, err error) error {
	if err != nil {
		return err
	}

	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("State: %s\n", s.State)
	fmt.Printf("Repeat: %s\n", s.RepeatMode)
	if s.Current != nil {
		liked := ""
		if s.Current.LikedAt != nil {
			liked = " ♥"
		}
		fmt.Printf("\nNow Playing:%s\n", liked)
		fmt.Printf("  %s - %s\n", s.Current.Title, strings.Join(s.Current.Artists, ", "))
		fmt.Printf("  %s / %s\n", formatMs(s.PositionMs), formatMs(s.Current.DurationMs))
	}
	if s.Radio != nil {
		fmt.Printf("\nRadio: %s (appended %d", s.Radio.Endpoint, s.Radio.Appended)
		if s.Radio.Exhausted {
			fmt.Print(", exhausted")
		}
		fmt.Println(")")
	}

	fmt.Printf("\nQueue (%d):\n", len(s.Queue))
	for i, t := range s.Queue {
		marker := "  "
		if i == s.Index {
			marker = "▶ "
		}
		fmt.Printf("%s%3d. %s - %s [%s] %s\n", marker, i, t.Title, strings.Join(t.Artists, ", "), formatMs(t.DurationMs), strings.ToLower(t.Source))
	}
	return nil
}

func printTracks(title string, resp *apiconnect.TracksResponse, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d):\n", title, len(resp.Tracks))
	for _, t := range resp.Tracks {
		fmt.Printf("  %-24s %s - %s [%s]\n", t.ID, t.Title, strings.Join(t.Artists, ", "), formatMs(t.DurationMs))
	}
	return nil
}

func printToggle(label string, resp *apiconnect.ToggleResponse, err error) error {
	if err != nil {
		return err
	}
	if resp.Active {
		fmt.Printf("%s at %s\n", label, resp.Timestamp.Local().Format(time.DateTime))
	} else {
		fmt.Printf("Not %s\n", strings.ToLower(label))
	}
	return nil
}

func printHistory(resp *apiconnect.SearchHistoryResponse, err error) error {
	if err != nil {
		return err
	}
	for _, e := range resp.Entries {
		fmt.Printf("  %5d  %s  %s\n", e.ID, e.SearchedAt.Local().Format(time.DateTime), e.Query)
	}
	return nil
}

func printAlbums(resp *apiconnect.AlbumsResponse, err error) error {
	if err != nil {
		return err
	}
	for _, a := range resp.Albums {
		fmt.Printf("  %-24s %s - %s (%s)\n", a.ID, a.Title, a.Authors, a.Year)
	}
	return nil
}

func printPlaylists(resp *apiconnect.PlaylistsResponse, err error) error {
	if err != nil {
		return err
	}
	for _, p := range resp.Playlists {
		fmt.Printf("  %s  %-30s %3d songs\n", p.ID, p.Name, p.SongCount)
	}
	return nil
}

func printPlaylist(p *apiconnect.Playlist, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("Playlist %s: %s (%d songs)\n", p.ID, p.Name, p.SongCount)
	for i, t := range p.Tracks {
		fmt.Printf("  %3d. %s - %s\n", i+1, t.Title, strings.Join(t.Artists, ", "))
	}
	return nil
}

func printNotification(n *apiconnect.Notification) {
	ts := n.Time.Local().Format(time.TimeOnly)
	switch {
	case n.Item != nil:
		fmt.Printf("[%s] #%d %-16s %s - %s (%d/%d, %s)\n", ts, n.SequenceNo, n.Kind, n.Item.Title, strings.Join(n.Item.Artists, ", "), n.Index+1, n.QueueLen, n.State)
	case n.TargetID != "":
		fmt.Printf("[%s] #%d %-16s %s\n", ts, n.SequenceNo, n.Kind, n.TargetID)
	default:
		fmt.Printf("[%s] #%d %-16s queue=%d state=%s\n", ts, n.SequenceNo, n.Kind, n.QueueLen, n.State)
	}
}

func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
