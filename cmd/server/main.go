// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/quaver/internal/api/connect"
	"github.com/osa030/quaver/internal/app/filter"
	"github.com/osa030/quaver/internal/app/library"
	"github.com/osa030/quaver/internal/app/notification"
	"github.com/osa030/quaver/internal/app/playback"
	"github.com/osa030/quaver/internal/app/player"
	"github.com/osa030/quaver/internal/app/radio"
	"github.com/osa030/quaver/internal/infra/config"
	"github.com/osa030/quaver/internal/infra/logger"
	"github.com/osa030/quaver/internal/infra/spotify"
	"github.com/osa030/quaver/internal/infra/store"
	"github.com/osa030/quaver/internal/infra/youtube"
)

var (
	app        = kingpin.New("quaver-server", "quaver playback queue server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	db, err := store.Open(cfg.Library.DBPath)
	if err != nil {
		return errors.Wrap(err, "failed to open library")
	}
	defer db.Close()

	spotifyClient, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create Spotify client")
	}

	sourceChain, err := radio.NewSourceChainFromConfig(cfg, radio.Dependencies{
		Recommender: spotifyClient,
		Searcher:    spotifyClient,
		Loaders: map[string]radio.PlaylistLoader{
			"spotify": spotifyClient,
			"youtube": youtube.NewPlaylistLoader(youtube.Config{}),
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create radio sources")
	}

	lib := library.NewService(db, library.Config{SearchHistoryLimit: cfg.Library.SearchHistoryLimit})

	deps := player.Dependencies{
		Engine:       playback.NewClockEngine(playback.ClockConfig{GapCorrection: cfg.GapCorrection()}),
		Source:       sourceChain,
		Catalog:      spotifyClient,
		Library:      lib,
		Notification: notification.NewManager(cfg.Player.EventBuffer),
	}
	if cfg.Player.PersistQueue {
		deps.QueueStore = db
	}
	playerSvc, err := player.NewService(cfg, deps)
	if err != nil {
		return errors.Wrap(err, "failed to create player")
	}
	if err := playerSvc.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start player")
	}

	auth := connect.WithInterceptors(apiconnect.NewAuthInterceptor(cfg.Auth.Token))
	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewPlayerServiceHandler(apiconnect.NewPlayerService(playerSvc), auth))
	mux.Handle(apiconnect.NewLibraryServiceHandler(apiconnect.NewLibraryService(lib, spotifyClient), auth))

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop the player first so that watch streams end
	if err := playerSvc.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown player: %v", err)
	}
	playerSvc.Notifications().Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return runErr
}

// printFilters prints available filters.
func printFilters() {
	registry := filter.GetRegistered()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	// Queue-aware filters are built with their queue and are not registered
	filters := []filter.Filter{
		filter.NewDuplicateTrackFilter(nil),
		filter.NewArtistDiversityFilter(nil, 0),
	}
	for _, name := range names {
		filters = append(filters, registry[name]())
	}

	fmt.Println("Available Filters:")
	for _, f := range filters {
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}
