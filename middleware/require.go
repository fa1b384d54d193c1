package middleware

import (
	"encoding/json"
	"net/http"

	hsAuth "github.com/MrEthical07/hsAuth"
)

// RequireIdentity rejects requests that [Gate] left unauthenticated with
// 401 M_MISSING_TOKEN. A request carrying a credential that did not resolve
// gets M_UNKNOWN_TOKEN instead.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		kind, msg := hsAuth.ErrcodeMissingToken, "Missing access token."
		if _, present := RequestToken(r); present {
			kind, msg = hsAuth.ErrcodeUnknownToken, "Unrecognised access token."
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(hsAuth.HTTPStatus(kind))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"errcode": string(kind),
			"error":   msg,
		})
	})
}
