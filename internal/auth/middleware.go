package auth

import (
	"context"
	"net/http"

	"github.com/abrezinsky/forumelections/internal/models"
)

type contextKey struct{}

// WithUser returns a context carrying the signed in user
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFromContext returns the signed in user, or nil for guests
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(contextKey{}).(*models.User)
	return u
}

// CanManageElections reports whether a user holds the elections admin
// capability. With adminModerator set, moderators qualify too.
func CanManageElections(u *models.User, adminModerator bool) bool {
	if u == nil {
		return false
	}
	if adminModerator {
		return u.Staff()
	}
	return u.Admin
}

// Authenticate attaches the session user to the request context. Requests
// without a valid session pass through as guests.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := a.UserFromRequest(r); u != nil {
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects guests with 401
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized - please log in", "not_logged_in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireElectionsAdmin rejects users without the elections admin
// capability with 403 invalid_access
func RequireElectionsAdmin(adminModerator bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CanManageElections(UserFromContext(r.Context()), adminModerator) {
				writeDenied(w, http.StatusForbidden, "FORBIDDEN", "You are not permitted to manage elections", "invalid_access")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, status int, code, message, key string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"code":"` + code + `","error":"` + message + `","message_key":"` + key + `"}`))
}
