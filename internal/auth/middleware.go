package auth

import (
	"net/http"
	"strings"
)

// Middleware authenticates requests and enforces the route policy.
type Middleware struct {
	verifier *Verifier
	policy   Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) (*Middleware, error) {
	verifier, err := NewVerifier(secret)
	if err != nil {
		return nil, err
	}
	return &Middleware{verifier: verifier, policy: policy}, nil
}

// Wrap applies authentication and role checks to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.verifier.Verify(bearerToken(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), claims.TenantID, role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		// The auth scheme is case-insensitive.
		if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
			return ""
		}
		token = header[7:]
	}
	return strings.TrimSpace(token)
}
