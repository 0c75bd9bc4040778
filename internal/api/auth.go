package api

import (
	"net/http"
	"strings"

	"seekroute/internal/auth"
)

type Principal struct {
	Subject string
	Role    string // admin, dispatcher, viewer
}

// getPrincipal extracts the caller's role.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
// - Else falls back to the X-Role header in dev mode.
// An invalid bearer token yields a viewer.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Subject: pr.Subject, Role: pr.Role}
		}
		return Principal{Role: auth.RoleViewer}
	}
	if s.Auth != nil && s.Auth.Mode != "dev" {
		return Principal{Role: auth.RoleViewer}
	}
	role := strings.ToLower(r.Header.Get("X-Role"))
	if role == "" {
		role = auth.RoleAdmin
	}
	return Principal{Subject: "dev", Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// CanDispatch reports whether the principal may change dispatch state.
func (p Principal) CanDispatch() bool { return p.IsAdmin() || p.Role == auth.RoleDispatcher }
