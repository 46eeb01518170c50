package httpapi

import (
	"context"
	"net/http"
	"strings"

	"rwkvd/internal/auth"
)

type ctxKey int

const credKey ctxKey = iota

// credentials is the authorization verdict attached to a request. The
// admission gate consumes the boolean plus the app id for per-tenant
// accounting; the secret never travels past this middleware.
type credentials struct {
	appID      string
	authorized bool
}

// AuthMiddleware checks app keys against the keystore and attaches the
// verdict to the request context. Requests proceed either way; rejection
// happens at the admission gate so the error shape is uniform.
//
// Accepted forms: "Authorization: Bearer <app_id>:<secret_key>" or the
// X-App-Id / X-Secret-Key header pair.
func AuthMiddleware(ks *auth.Keystore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appID, secret := extractKey(r)
			cred := credentials{
				appID:      appID,
				authorized: ks.Authorize(appID, secret),
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), credKey, cred)))
		})
	}
}

func extractKey(r *http.Request) (appID, secret string) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token := strings.TrimPrefix(h, "Bearer ")
		if i := strings.IndexByte(token, ':'); i >= 0 {
			return token[:i], token[i+1:]
		}
		return "", token
	}
	return r.Header.Get("X-App-Id"), r.Header.Get("X-Secret-Key")
}

// requestCredentials returns the verdict attached by AuthMiddleware.
// Requests that bypassed the middleware count as unauthorized.
func requestCredentials(r *http.Request) credentials {
	if c, ok := r.Context().Value(credKey).(credentials); ok {
		return c
	}
	return credentials{}
}
