package connect

import (
	"context"

	"connectrpc.com/connect"
)

const (
	// TokenHeader is the header carrying the RPC token.
	TokenHeader = "X-Quaver-Token"
)

// tokenInterceptor rejects calls whose token header does not match.
type tokenInterceptor struct {
	token string
}

// NewAuthInterceptor creates an interceptor that validates the token header
// on unary and streaming calls.
func NewAuthInterceptor(token string) connect.Interceptor {
	return &tokenInterceptor{token: token}
}

func (i *tokenInterceptor) check(header string) error {
	if header == "" || header != i.token {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}
	return nil
}

func (i *tokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		// Clients attach the token themselves
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		if err := i.check(req.Header().Get(TokenHeader)); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *tokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *tokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.RequestHeader().Get(TokenHeader)); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}
