package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// route binds a procedure to its handler.
type route struct {
	procedure string
	handler   http.Handler
}

func unaryRoute[Req, Res any](procedure string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), opts []connect.HandlerOption) route {
	return route{procedure: procedure, handler: connect.NewUnaryHandler(procedure, fn, opts...)}
}

func serverStreamRoute[Req, Res any](procedure string, fn func(context.Context, *connect.Request[Req], *connect.ServerStream[Res]) error, opts []connect.HandlerOption) route {
	return route{procedure: procedure, handler: connect.NewServerStreamHandler(procedure, fn, opts...)}
}

// serviceHandler dispatches the procedures of one service.
func serviceHandler(routes []route) http.Handler {
	byProcedure := make(map[string]http.Handler, len(routes))
	for _, r := range routes {
		byProcedure[r.procedure] = r.handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := byProcedure[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}
