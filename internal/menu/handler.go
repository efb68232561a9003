package menu

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

// Handler serves the navigation menu and its administrative endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers menu routes. The visible menu is available to
// any authenticated user; item administration requires the manage
// permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.visibleMenu)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("manage menus", "edit roles"))
		r.Post("/items", h.createItem)
		r.Put("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.deleteItem)
		r.Get("/duplicates", h.listDuplicates)
		r.Post("/duplicates/fix", h.fixDuplicates)
	})
}

func (h *Handler) visibleMenu(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		shared.RespondJSON(w, http.StatusUnauthorized, map[string]any{"error": "authentication required"})
		return
	}
	nodes, err := h.service.VisibleMenu(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve menu", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"menu": nodes})
}

type itemForm struct {
	RoleID   int64  `json:"role_id" validate:"required"`
	Title    string `json:"title" validate:"required,max=255"`
	Href     string `json:"href" validate:"required,max=255"`
	Icon     string `json:"icon" validate:"max=255"`
	Order    int    `json:"order"`
	ParentID *int64 `json:"parent_id"`
}

func (h *Handler) decodeItemForm(r *http.Request) (itemForm, *shared.ValidationError) {
	var form itemForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		return form, shared.NewValidationError("body", "invalid JSON payload")
	}
	if err := h.validator.Struct(form); err != nil {
		fields := make(map[string]string)
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fields[strings.ToLower(fieldErr.Field())] = "failed " + fieldErr.Tag() + " validation"
		}
		return form, &shared.ValidationError{Fields: fields}
	}
	return form, nil
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	form, vErr := h.decodeItemForm(r)
	if vErr != nil {
		shared.RespondError(w, vErr)
		return
	}
	item, err := h.service.CreateItem(r.Context(), Item{
		RoleID:   form.RoleID,
		Title:    form.Title,
		Href:     form.Href,
		Icon:     form.Icon,
		Order:    form.Order,
		ParentID: form.ParentID,
	})
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, map[string]any{"id": item.ID})
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, shared.NewValidationError("id", "invalid menu item id"))
		return
	}
	form, vErr := h.decodeItemForm(r)
	if vErr != nil {
		shared.RespondError(w, vErr)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), Item{
		ID:       id,
		RoleID:   form.RoleID,
		Title:    form.Title,
		Href:     form.Href,
		Icon:     form.Icon,
		Order:    form.Order,
		ParentID: form.ParentID,
	})
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"id": item.ID})
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, shared.NewValidationError("id", "invalid menu item id"))
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) listDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.FindDuplicates(r.Context())
	if err != nil {
		h.logger.Error("find duplicate menus", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		ids := make([]int64, 0, len(g.Items))
		for _, item := range g.Items {
			ids = append(ids, item.ID)
		}
		payload = append(payload, map[string]any{
			"role_id": g.RoleID,
			"title":   g.Title,
			"href":    g.Href,
			"ids":     ids,
		})
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"duplicates": payload})
}

func (h *Handler) fixDuplicates(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.FixDuplicates(r.Context())
	if err != nil {
		h.logger.Error("fix duplicate menus", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
