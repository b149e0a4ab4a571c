package httpx

import (
	"context"
	"net/http"
)

// Identity is the caller as verified by the upstream auth layer. This
// service trusts the headers the edge proxy sets after authentication;
// it never checks credentials itself.
type Identity struct {
	UserID string
	Role   string
}

func (id Identity) IsAdmin() bool { return id.Role == "admin" }

type ctxKey int

const identityKey ctxKey = 0

const (
	headerUserID = "X-User-Id"
	headerRole   = "X-User-Role"
)

func TrustedIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := r.Header.Get(headerUserID); uid != "" {
			id := Identity{UserID: uid, Role: r.Header.Get(headerRole)}
			r = r.WithContext(context.WithValue(r.Context(), identityKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireIdentity rejects unauthenticated callers; used on the order read
// paths only. Checkout is public and the webhook is gateway-triggered.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
