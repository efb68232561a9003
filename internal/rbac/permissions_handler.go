package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// PermissionsHandler serves the permission catalog.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("view permissions", "view roles"))
		r.Get("/", h.listPermissions)
		r.Get("/grouped", h.listGrouped)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(perms))
	for _, p := range perms {
		payload = append(payload, map[string]any{
			"id":          p.ID,
			"name":        p.Name,
			"description": p.Description,
		})
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"permissions": payload})
}

func (h *PermissionsHandler) listGrouped(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.service.CatalogByResource(r.Context())
	if err != nil {
		h.logger.Error("group permissions", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"resources": grouped})
}
