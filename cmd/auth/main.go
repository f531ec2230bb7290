// Package main provides the Spotify refresh-token bootstrap tool.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/quaver/internal/infra/logger"
)

var (
	app          = kingpin.New("quaver-auth", "Obtain a Spotify refresh token for the quaver server")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	envFile      = app.Flag("env-file", "Store the refresh token in this .env file").String()
	timeout      = app.Flag("timeout", "How long to wait for the authorization").Default("5m").Duration()
)

type authResult struct {
	token *oauth2.Token
	err   error
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopeUserLibraryRead,
		),
	)
	state := uuid.NewString()
	results := make(chan authResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != state {
			http.Error(w, "State mismatch", http.StatusForbidden)
			zlog.Warn().Msgf("auth: state mismatch: got=%s", st)
			return
		}
		token, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			results <- authResult{err: err}
			return
		}
		fmt.Fprint(w, "quaver: authorization complete. You can close this window.")
		results <- authResult{token: token}
	})

	server := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", *port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Msgf("Failed to start callback server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize quaver:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")
	zlog.Info().Msgf("auth: waiting for authorization: timeout=%s", *timeout)

	var result authResult
	select {
	case result = <-results:
	case <-time.After(*timeout):
		result = authResult{err: fmt.Errorf("no authorization within %s", *timeout)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Warn().Msgf("auth: failed to shutdown callback server: %v", err)
	}

	if result.err != nil {
		zlog.Error().Msgf("auth: authorization failed: %v", result.err)
		os.Exit(1)
	}

	if *envFile != "" {
		if err := storeRefreshToken(*envFile, result.token.RefreshToken); err != nil {
			zlog.Error().Msgf("auth: failed to write %s: %v", *envFile, err)
			os.Exit(1)
		}
		zlog.Info().Msgf("auth: refresh token stored: file=%s", *envFile)
		return
	}

	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Add this to your config file:")
	fmt.Println("")
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: \"%s\"\n", result.token.RefreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", result.token.RefreshToken)
}

// storeRefreshToken merges the token into an env file, keeping other keys.
func storeRefreshToken(path, refreshToken string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		env = make(map[string]string)
	}
	env["SPOTIFY_REFRESH_TOKEN"] = refreshToken
	return godotenv.Write(env, path)
}
