package roles

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-app/gatehouse/internal/permission"
	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	audit     *shared.AuditLogger
	validator *validator.Validate
}

// NewHandler builds Handler instance. The audit logger may be nil, in
// which case mutations are not recorded.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, audit *shared.AuditLogger) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, audit: audit, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("view roles"))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("create roles", "edit roles"))
		r.Post("/", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("edit roles"))
		r.Put("/{id}", h.updateRole)
		r.Put("/{id}/permissions", h.syncPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("delete roles"))
		r.Delete("/{id}", h.deleteRole)
	})
}

type roleForm struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description" validate:"max=1024"`
	Permissions []int64 `json:"permissions"`
}

type syncPermissionsForm struct {
	Permissions []int64 `json:"permissions" validate:"required"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(all))
	for _, role := range all {
		payload = append(payload, rolePayload(role))
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"roles": payload})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, rolePayload(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeRoleForm(w, r)
	if !ok {
		return
	}
	role, err := h.service.CreateRole(r.Context(), form.Name, form.Description, form.Permissions)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.create", role.ID, map[string]any{"name": role.Name})
	shared.RespondJSON(w, http.StatusCreated, rolePayload(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	form, ok := h.decodeRoleForm(w, r)
	if !ok {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, form.Name, form.Description)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.update", role.ID, map[string]any{"name": role.Name})
	shared.RespondJSON(w, http.StatusOK, rolePayload(role))
}

func (h *Handler) syncPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var form syncPermissionsForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		shared.RespondError(w, shared.NewValidationError("body", "invalid JSON payload"))
		return
	}
	if err := h.service.SyncPermissions(r.Context(), id, form.Permissions); err != nil {
		shared.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.sync_permissions", id, map[string]any{"permissions": form.Permissions})
	shared.RespondJSON(w, http.StatusOK, map[string]any{"role_id": id, "permissions": form.Permissions})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		shared.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.delete", id, nil)
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) recordAudit(r *http.Request, action string, roleID int64, meta map[string]any) {
	if h.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  shared.ActorIDFromRequest(r),
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	}
	if err := h.audit.Record(r.Context(), entry); err != nil {
		h.logger.Warn("record audit", slog.Any("error", err))
	}
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, shared.NewValidationError("id", "invalid role id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeRoleForm(w http.ResponseWriter, r *http.Request) (roleForm, bool) {
	var form roleForm
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

// rolePayload renders a role with its permissions grouped by resource,
// the shape the role listing UI consumes.
func rolePayload(role Role) map[string]any {
	names := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		names = append(names, p.Name)
	}
	return map[string]any{
		"id":          role.ID,
		"name":        role.Name,
		"description": role.Description,
		"permissions": names,
		"grouped":     permission.NewSetFromNames(names).GroupedByResource(),
	}
}
