package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/gradebook/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so background
// imports can be attributed to the request that started them.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
