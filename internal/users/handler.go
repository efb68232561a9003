package users

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Handler manages user management endpoints. Listing and creation are
// gated by permission strings; per-record operations go through the
// engine so ownership fallbacks and the self-deletion guard apply.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	engine    *rbac.Engine
	rbac      rbac.Middleware
	audit     *shared.AuditLogger
	validator *validator.Validate
}

// NewHandler builds Handler instance. The audit logger may be nil, in
// which case role assignment changes are not recorded.
func NewHandler(logger *slog.Logger, service *Service, engine *rbac.Engine, rbacMW rbac.Middleware, audit *shared.AuditLogger) *Handler {
	return &Handler{logger: logger, service: service, engine: engine, rbac: rbacMW, audit: audit, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("view users"))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("create users"))
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("assign users", "edit users"))
		r.Put("/{id}/roles", h.syncRoles)
		r.Post("/{id}/roles/{roleID}", h.assignRole)
		r.Delete("/{id}/roles/{roleID}", h.removeRole)
	})
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
}

type userForm struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"max=255"`
	Password string `json:"password" validate:"omitempty,min=8"`
	IsActive *bool  `json:"is_active"`
}

type syncRolesForm struct {
	Roles []int64 `json:"roles" validate:"required"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	meta := shared.NewPagination(page, perPage, len(all))
	start, end := meta.Bounds()
	payload := make([]map[string]any, 0, end-start)
	for _, user := range all[start:end] {
		payload = append(payload, userPayload(user))
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"users": payload,
		"meta": map[string]any{
			"page":        meta.Page,
			"per_page":    meta.PerPage,
			"total":       meta.Total,
			"total_pages": meta.TotalPages,
		},
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	actorID, _, user, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, actorID, rbac.ActionView, user) {
		return
	}
	shared.RespondJSON(w, http.StatusOK, userPayload(user))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeUserForm(w, r)
	if !ok {
		return
	}
	if form.Password == "" {
		shared.RespondError(w, shared.NewValidationError("password", "password is required"))
		return
	}
	user, err := h.service.CreateUser(r.Context(), form.Email, form.Name, form.Password)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, userPayload(user))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	actorID, targetID, user, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, actorID, rbac.ActionEdit, user) {
		return
	}
	form, ok := h.decodeUserForm(w, r)
	if !ok {
		return
	}
	isActive := user.IsActive
	if form.IsActive != nil {
		isActive = *form.IsActive
	}
	updated, err := h.service.UpdateUser(r.Context(), targetID, form.Email, form.Name, isActive)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, userPayload(updated))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, targetID, user, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	if !h.authorize(w, r, actorID, rbac.ActionDelete, user) {
		return
	}
	if err := h.service.DeleteUser(r.Context(), targetID); err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) syncRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r, "id")
	if !ok {
		return
	}
	var form syncRolesForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		shared.RespondError(w, shared.NewValidationError("body", "invalid JSON payload"))
		return
	}
	if err := h.service.SyncRoles(r.Context(), id, form.Roles); err != nil {
		shared.RespondError(w, err)
		return
	}
	h.recordAudit(r, "user.sync_roles", id, map[string]any{"roles": form.Roles})
	shared.RespondJSON(w, http.StatusOK, map[string]any{"user_id": id, "roles": form.Roles})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := h.userID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, roleID); err != nil {
		shared.RespondError(w, err)
		return
	}
	h.recordAudit(r, "user.assign_role", userID, map[string]any{"role_id": roleID})
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := h.userID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		shared.RespondError(w, err)
		return
	}
	h.recordAudit(r, "user.remove_role", userID, map[string]any{"role_id": roleID})
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) recordAudit(r *http.Request, action string, userID int64, meta map[string]any) {
	if h.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  shared.ActorIDFromRequest(r),
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	}
	if err := h.audit.Record(r.Context(), entry); err != nil {
		h.logger.Warn("record audit", slog.Any("error", err))
	}
}

func (h *Handler) loadTarget(w http.ResponseWriter, r *http.Request) (actorID, targetID int64, user User, ok bool) {
	actorID, found := currentUserID(r)
	if !found {
		shared.RespondJSON(w, http.StatusUnauthorized, map[string]any{"error": "authentication required"})
		return 0, 0, User{}, false
	}
	targetID, idOK := h.userID(w, r, "id")
	if !idOK {
		return 0, 0, User{}, false
	}
	user, err := h.service.GetUser(r.Context(), targetID)
	if err != nil {
		shared.RespondError(w, err)
		return 0, 0, User{}, false
	}
	return actorID, targetID, user, true
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, actorID int64, action string, user User) bool {
	decision, err := h.engine.Authorize(r.Context(), actorID, action, rbac.UserResource, user)
	if err != nil {
		h.logger.Error("authorize user operation", slog.Any("error", err))
		shared.RespondError(w, err)
		return false
	}
	if !decision.Allowed {
		shared.RespondJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden", "reason": decision.Reason})
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		shared.RespondError(w, shared.NewValidationError(param, "invalid id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeUserForm(w http.ResponseWriter, r *http.Request) (userForm, bool) {
	var form userForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		shared.RespondError(w, shared.NewValidationError("body", "invalid JSON payload"))
		return form, false
	}
	if err := h.validator.Struct(form); err != nil {
		fields := make(map[string]string)
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fields[strings.ToLower(fieldErr.Field())] = "failed " + fieldErr.Tag() + " validation"
		}
		shared.RespondError(w, &shared.ValidationError{Fields: fields})
		return form, false
	}
	return form, true
}

func userPayload(user User) map[string]any {
	roles := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, role.Name)
	}
	return map[string]any{
		"id":        user.ID,
		"email":     user.Email,
		"name":      user.Name,
		"is_active": user.IsActive,
		"roles":     roles,
	}
}

func currentUserID(r *http.Request) (int64, bool) {
	return shared.UserIDFromContext(r.Context())
}
