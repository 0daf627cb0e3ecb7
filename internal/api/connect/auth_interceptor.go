// Package connect provides the Connect RPC control service of the player.
package connect

import (
	"context"
	"crypto/subtle"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// AdminAuthInterceptor validates admin tokens on unary and streaming calls.
type AdminAuthInterceptor struct {
	token string
}

var _ connect.Interceptor = (*AdminAuthInterceptor)(nil)

// NewAdminAuthInterceptor creates an interceptor that accepts requests carrying token.
func NewAdminAuthInterceptor(token string) *AdminAuthInterceptor {
	return &AdminAuthInterceptor{token: token}
}

func (i *AdminAuthInterceptor) authorize(header http.Header) error {
	token := header.Get(AdminTokenHeader)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(i.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}
	return nil
}

// WrapUnary implements connect.Interceptor.
func (i *AdminAuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := i.authorize(req.Header()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AdminAuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *AdminAuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.authorize(conn.RequestHeader()); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}
