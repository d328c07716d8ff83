// Package middleware carries the HTTP cross-cutting concerns: transport
// metadata capture and JWT verification.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey int

const transportMetadataKey contextKey = iota

// Metadata keys stamped onto incoming events.
const (
	MetaOriginatorIP = "originatorIp"
	MetaUserAgent    = "userAgent"
	MetaJWTSubject   = "jwt_sub"
	MetaJWTIssuer    = "jwt_iss"
)

// TransportMetadata records where a request came from. The map stays
// mutable downstream; the JWT middleware adds its claims to it.
func TransportMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := map[string]string{
			MetaOriginatorIP: originatorIP(r),
		}
		if ua := r.UserAgent(); ua != "" {
			meta[MetaUserAgent] = ua
		}
		ctx := context.WithValue(r.Context(), transportMetadataKey, meta)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MetadataFromContext returns the transport metadata map, or nil when
// TransportMetadata did not run.
func MetadataFromContext(ctx context.Context) map[string]string {
	meta, _ := ctx.Value(transportMetadataKey).(map[string]string)
	return meta
}

// originatorIP prefers proxy headers over the peer address: the first
// X-Forwarded-For hop, then X-Real-Ip, then the connection itself.
func originatorIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
