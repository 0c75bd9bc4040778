// Package auth verifies bearer tokens and extracts the caller's role.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Roles understood by the dispatch API.
const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleViewer     = "viewer"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates tokens. Modes: dev (the token is the role itself) and
// hmac (HS256 JWT carrying a role claim).
type Verifier struct {
	Mode      string
	Secret    []byte
	RoleClaim string
}

type Principal struct {
	Subject string
	Role    string
}

// Claims is the JWT body issued to dispatch clients.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewVerifier(mode, secret string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: mode, Secret: []byte(secret), RoleClaim: "role"}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case "dev":
		role := strings.ToLower(strings.TrimSpace(token))
		if !knownRole(role) {
			return Principal{}, fmt.Errorf("%w: dev token must be a role", ErrInvalidToken)
		}
		return Principal{Subject: "dev", Role: role}, nil
	case "hmac":
		claims := &Claims{}
		tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return v.Secret, nil
		})
		if err != nil || !tok.Valid {
			return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		role := strings.ToLower(claims.Role)
		if role == "" {
			role = RoleViewer
		}
		return Principal{Subject: claims.Subject, Role: role}, nil
	default:
		return Principal{}, fmt.Errorf("unsupported auth mode %q", v.Mode)
	}
}

// Issue signs an HS256 token for subject with the given role.
func (v *Verifier) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "seekroute",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

func knownRole(r string) bool {
	return r == RoleAdmin || r == RoleDispatcher || r == RoleViewer
}
