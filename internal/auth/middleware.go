package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ecomOrderManagement/repository"
)

// Sentinel errors for handlers to map onto HTTP status codes.
var (
	// ErrUnauthenticated means the credential is missing or invalid (401).
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPermissionDenied means the caller lacks the required role (403).
	ErrPermissionDenied = errors.New("permission denied")
)

// NewMiddleware returns HTTP middleware that extracts and validates a Bearer JWT
// from the Authorization header and injects the Principal into the request context.
// Paths listed in allowUnauthenticated will bypass authentication (e.g., health checks).
func NewMiddleware(secret string, allowUnauthenticated ...string) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, p := range allowUnauthenticated {
		allow[strings.TrimSpace(p)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allow[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			p, err := ParseFromRequest(r, secret)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf("auth error: %v", err)})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: missing principal", ErrUnauthenticated)
	}
	return p, nil
}

// RequireKind ensures the principal has the given kind (lowercased compare).
func RequireKind(ctx context.Context, kind string) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Kind != strings.ToLower(kind) {
		return nil, fmt.Errorf("%w: only %s can perform this action", ErrPermissionDenied, strings.ToLower(kind))
	}
	return p, nil
}

// RequireStaffOrAdmin ensures the caller is a staff operator or an admin.
func RequireStaffOrAdmin(ctx context.Context) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if p.Kind != "staff" && p.Kind != "admin" {
		return nil, fmt.Errorf("%w: only staff or admin can perform this action", ErrPermissionDenied)
	}
	return p, nil
}

// RequireAdmin ensures the caller is an admin principal AND that the underlying
// operator exists with role 'admin'. This prevents spoofing by a non-admin.
func RequireAdmin(ctx context.Context, operators *repository.OperatorRepository) (*Principal, error) {
	p, err := RequireKind(ctx, "admin")
	if err != nil {
		return nil, err
	}
	if operators == nil {
		return nil, errors.New("operators repository not configured")
	}
	op, err := operators.GetByUsername(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("get operator: %w", err)
	}
	if op == nil || strings.ToLower(strings.TrimSpace(op.Role)) != "admin" {
		return nil, fmt.Errorf("%w: only admin can perform this action", ErrPermissionDenied)
	}
	return p, nil
}
