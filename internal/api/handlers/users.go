package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/users"
)

type userTransition func(ctx context.Context, actor audit.Actor, id uuid.UUID) (*models.User, error)

type UserHandler struct {
	users  *users.Service
	logger *slog.Logger
}

func NewUserHandler(svc *users.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: svc, logger: logger}
}

// List supports search, organization_id, role, is_active and
// is_super_admin filters.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := dto.PaginationFromRequest(r)
	details := make(map[string]string)

	f := users.Filter{
		Search:    q.Get("search"),
		Role:      q.Get("role"),
		Page:      p.Page,
		PerPage:   p.PerPage,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if v := q.Get("organization_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			details["organization_id"] = "Invalid organization ID format"
		} else {
			f.OrganizationID = id
		}
	}
	for name, dst := range map[string]**bool{"is_active": &f.IsActive, "is_super_admin": &f.IsSuperAdmin} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			details[name] = "Must be true or false"
			continue
		}
		*dst = &b
	}
	if len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	result, err := h.users.FindAll(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       dto.AdminUsersFromModels(result.Data),
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

func (h *UserHandler) SuperAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.users.SuperAdmins(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: dto.AdminUsersFromModels(admins)})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminUserFromModel(user))
}

func (h *UserHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.users.Disable)
}

func (h *UserHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.users.Enable)
}

func (h *UserHandler) GrantSuperAdmin(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.users.GrantSuperAdmin)
}

func (h *UserHandler) RevokeSuperAdmin(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.users.RevokeSuperAdmin)
}

// ResetPassword returns the temporary password once. It is not retrievable
// afterwards.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	password, err := h.users.ResetPassword(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, dto.ResetPasswordResponse{TemporaryPassword: password})
}

func (h *UserHandler) transition(w http.ResponseWriter, r *http.Request, apply userTransition) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := apply(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminUserFromModel(user))
}
