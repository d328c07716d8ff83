package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/agnostech/event-gateway/internal/pkg/httputil"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
)

// JWTVerifier validates bearer tokens against a JWKS endpoint and stamps
// the token subject and issuer into the transport metadata.
type JWTVerifier struct {
	cache   *jwk.Cache
	jwksURL string
}

// NewJWTVerifier sets up the key cache and performs an initial fetch so a
// bad JWKS URL fails at startup instead of on the first request.
func NewJWTVerifier(ctx context.Context, jwksURL string, refreshInterval time.Duration) (*JWTVerifier, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithRefreshInterval(refreshInterval)); err != nil {
		return nil, err
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, err
	}
	return &JWTVerifier{cache: cache, jwksURL: jwksURL}, nil
}

// Middleware rejects requests that do not carry a valid bearer token.
func (v *JWTVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httputil.Unauthorized(w, r)
			return
		}

		keys, err := v.cache.Get(r.Context(), v.jwksURL)
		if err != nil {
			logger.Error("jwks lookup failed", "url", v.jwksURL, "error", err)
			httputil.InternalError(w, r, err)
			return
		}

		parsed, err := jwt.Parse([]byte(token), jwt.WithKeySet(keys), jwt.WithValidate(true))
		if err != nil {
			logger.Debug("token rejected", "error", err)
			httputil.Unauthorized(w, r)
			return
		}

		if meta := MetadataFromContext(r.Context()); meta != nil {
			if sub := parsed.Subject(); sub != "" {
				meta[MetaJWTSubject] = sub
			}
			if iss := parsed.Issuer(); iss != "" {
				meta[MetaJWTIssuer] = iss
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
