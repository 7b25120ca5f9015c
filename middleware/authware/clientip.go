package authware

import (
	"strings"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-sentinel"
)

// LoopbackIP is reported when no forwarding header names a client.
const LoopbackIP = "127.0.0.1"

// ClientIP resolves the originating client address from proxy headers,
// checked in priority order: X-Forwarded-For (first hop), X-Real-IP, then
// CF-Connecting-IP.
func ClientIP(ctx router.Context) string {
	if xff := strings.TrimSpace(ctx.GetString("X-Forwarded-For", "")); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = strings.TrimSpace(xff[:i])
		}
		if xff != "" {
			return xff
		}
	}

	if real := strings.TrimSpace(ctx.GetString("X-Real-IP", "")); real != "" {
		return real
	}

	if cf := strings.TrimSpace(ctx.GetString("CF-Connecting-IP", "")); cf != "" {
		return cf
	}

	return LoopbackIP
}

// RequestMeta captures the request attributes session creation cares
// about.
func RequestMeta(ctx router.Context) sentinel.RequestMeta {
	return sentinel.RequestMeta{
		UserAgent: ctx.GetString("User-Agent", ""),
		IPAddress: ClientIP(ctx),
	}
}
