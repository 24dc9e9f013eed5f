package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ecomOrderManagement/internal/auth"
	"ecomOrderManagement/internal/lifecycle"
	"ecomOrderManagement/models"
)

// Operator management is admin-only across the board, reads included:
// the roster itself is sensitive.

func (h *handlers) listOperators(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	operators, err := h.d.Operators.List(r.Context(), atoiOrZero(q.Get("limit")), atoiOrZero(q.Get("offset")))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if operators == nil {
		operators = []models.Operator{}
	}
	respondJSON(w, http.StatusOK, struct {
		Operators []models.Operator `json:"operators"`
	}{Operators: operators})
}

type operatorRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *handlers) createOperator(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	var req operatorRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		respondError(w, r, invalidInputf("username is required"))
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !validRole(role) {
		respondError(w, r, invalidInputf("role must be %q or %q", models.RoleAdmin, models.RoleStaff))
		return
	}
	existing, err := h.d.Operators.GetByUsername(r.Context(), username)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if existing != nil {
		respondError(w, r, invalidInputf("operator %q already exists", username))
		return
	}
	op, err := h.d.Operators.Create(r.Context(), username, role)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, op)
}

type operatorRolePatch struct {
	Role string `json:"role"`
}

func (h *handlers) updateOperatorRole(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	username := chi.URLParam(r, "username")
	var req operatorRolePatch
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !validRole(role) {
		respondError(w, r, invalidInputf("role must be %q or %q", models.RoleAdmin, models.RoleStaff))
		return
	}
	op, err := h.d.Operators.GetByUsername(r.Context(), username)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if op == nil {
		respondError(w, r, fmt.Errorf("%w: operator %q", lifecycle.ErrNotFound, username))
		return
	}
	if err := h.d.Operators.UpdateRoleByUsername(r.Context(), username, role); err != nil {
		respondError(w, r, err)
		return
	}
	op.Role = role
	respondJSON(w, http.StatusOK, op)
}

func (h *handlers) deleteOperator(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAdmin(r.Context(), h.d.Operators)
	if err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	op, err := h.d.Operators.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if op == nil {
		respondError(w, r, fmt.Errorf("%w: operator %d", lifecycle.ErrNotFound, id))
		return
	}
	if op.Username == caller.Name {
		respondError(w, r, invalidInputf("cannot delete your own operator account"))
		return
	}
	if err := h.d.Operators.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func validRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleStaff
}
