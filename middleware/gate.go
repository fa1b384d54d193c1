package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	hsAuth "github.com/MrEthical07/hsAuth"
)

type identityContextKey struct{}

type gateMarkerKey struct{}

// IdentityFromContext returns the identity attached by [Gate], if any.
func IdentityFromContext(ctx context.Context) (hsAuth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(hsAuth.Identity)
	return id, ok
}

// WithIdentity attaches id to ctx. Handlers normally rely on [Gate]; this is
// exposed for tests and for callers that authenticate by other means.
func WithIdentity(ctx context.Context, id hsAuth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Gate resolves the request's bearer credential, if any, and attaches the
// owning identity to the request context. It never rejects a request:
// missing, unknown and revoked credentials leave the request
// unauthenticated, and downstream handlers decide what that means.
//
// Gate is idempotent per request; a nested Gate passes straight through.
func Gate(engine *hsAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Context().Value(gateMarkerKey{}) != nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := remoteIP(r)
			ctx := context.WithValue(r.Context(), gateMarkerKey{}, true)
			ctx = hsAuth.WithClientIP(ctx, ip)

			if engine == nil {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, ok := RequestToken(r)
			if !ok {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			id, err := engine.Authenticate(ctx, token)
			if err != nil {
				if !errors.Is(err, hsAuth.ErrUnknownToken) {
					engine.Logger().Warn("request gate lookup failed", zap.Error(err))
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if engine.UpdateLastSeen() {
				if err := engine.TouchDevice(ctx, token, ip); err != nil && !errors.Is(err, hsAuth.ErrDeviceNotFound) {
					engine.Logger().Warn("device last-seen update failed",
						zap.String("device_id", id.DeviceID),
						zap.Error(err))
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}

// RequestToken extracts a bearer credential from the Authorization header,
// the Authentication header, or the access_token query parameter, in that
// order.
func RequestToken(r *http.Request) (string, bool) {
	for _, h := range []string{"Authorization", "Authentication"} {
		if token, ok := bearerToken(r.Header.Get(h)); ok {
			return token, true
		}
	}
	if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
		return token, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	fields := strings.Fields(value)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}
	return fields[1], true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
