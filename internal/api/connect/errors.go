package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/app/playback"
	"github.com/osa030/quaver/internal/app/player"
	"github.com/osa030/quaver/internal/app/radio"
	"github.com/osa030/quaver/internal/infra/store"
)

// toConnectError maps service errors to Connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	code := connect.CodeInternal
	switch {
	case errors.IsAssertionFailure(err):
		code = connect.CodeInvalidArgument
	case errors.Is(err, store.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, playback.ErrOutOfRange):
		code = connect.CodeOutOfRange
	case errors.Is(err, radio.ErrIdle),
		errors.Is(err, radio.ErrExhausted),
		errors.Is(err, player.ErrNothingPlaying),
		errors.Is(err, playback.ErrQueueEmpty),
		errors.Is(err, playback.ErrNoItem),
		errors.Is(err, playback.ErrNotPlaying),
		errors.Is(err, playback.ErrNotPaused):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	}

	if code == connect.CodeInternal {
		zlog.Error().Msgf("rpc: internal error: %+v", err)
	}
	return connect.NewError(code, err)
}

func invalidArgument(msg string) error {
	return connect.NewError(connect.CodeInvalidArgument, errors.New(msg))
}
