// Package auth resolves the authenticated identity of a caller. Bearer
// tokens map to user ids; in disabled mode every caller may be treated as a
// configured default user.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Mode selects how identities are resolved.
type Mode string

// Supported modes.
const (
	ModeDisabled Mode = "disabled"
	ModeToken    Mode = "token"
)

// User binds a bearer token to a user id.
type User struct {
	Token  string
	UserID string
}

// Resolver maps credentials to user ids.
type Resolver struct {
	mode        Mode
	defaultUser string
	tokens      map[string]string
}

// NewResolver builds a Resolver. In token mode every user needs a non-empty
// token and user id, and tokens must be unique.
func NewResolver(mode Mode, defaultUser string, users []User) (*Resolver, error) {
	r := &Resolver{mode: mode, defaultUser: defaultUser, tokens: make(map[string]string, len(users))}
	switch mode {
	case ModeDisabled:
	case ModeToken:
		if len(users) == 0 {
			return nil, errors.New("auth: token mode requires at least one user")
		}
		for i, u := range users {
			if u.Token == "" || u.UserID == "" {
				return nil, fmt.Errorf("auth: users[%d]: token and user_id are required", i)
			}
			if _, dup := r.tokens[u.Token]; dup {
				return nil, fmt.Errorf("auth: users[%d]: duplicate token", i)
			}
			r.tokens[u.Token] = u.UserID
		}
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", mode)
	}
	return r, nil
}

// Mode returns the resolver's mode.
func (r *Resolver) Mode() Mode { return r.mode }

// Resolve returns the user id for token. In disabled mode the token is
// ignored and the default user, if any, is returned.
func (r *Resolver) Resolve(token string) (string, bool) {
	if r.mode == ModeDisabled {
		return r.defaultUser, r.defaultUser != ""
	}
	id, ok := r.tokens[token]
	return id, ok
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFromContext returns the user id stored in ctx.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Middleware attaches the caller's identity to the request context.
// In token mode requests must carry a known "Authorization: Bearer <token>"
// header; in disabled mode all requests pass through.
func Middleware(r *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.mode == ModeDisabled {
				if id, ok := r.Resolve(""); ok {
					req = req.WithContext(WithUser(req.Context(), id))
				}
				next.ServeHTTP(w, req)
				return
			}
			header := req.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w)
				return
			}
			id, ok := r.Resolve(strings.TrimPrefix(header, "Bearer "))
			if !ok {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, req.WithContext(WithUser(req.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
