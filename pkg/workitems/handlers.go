package workitems

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/practicehub/practicehub/pkg/httputil"
	"github.com/practicehub/practicehub/pkg/rbac"
)

// Handlers provides the work item HTTP surface
type Handlers struct {
	service    *Service
	middleware *rbac.Middleware
}

// NewHandlers creates work item handlers
func NewHandlers(service *Service, middleware *rbac.Middleware) *Handlers {
	return &Handlers{service: service, middleware: middleware}
}

// RegisterRoutes registers the work item routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/work-items", h.Create).Methods("POST")
	router.HandleFunc("/work-items", h.List).Methods("GET")
	router.HandleFunc("/work-items/{id}", h.Get).Methods("GET")
	router.HandleFunc("/work-items/{id}", h.Update).Methods("PUT")
	router.HandleFunc("/work-items/{id}", h.Delete).Methods("DELETE")
}

func (h *Handlers) guardFor(w http.ResponseWriter, r *http.Request) *rbac.ScopedGuard {
	checker := h.middleware.CheckerFor(r.Context())
	if checker == nil {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authorization context missing")
		return nil
	}
	return rbac.NewScopedGuard(checker)
}

// Create creates a work item
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	guard := h.guardFor(w, r)
	if guard == nil {
		return
	}

	var input CreateInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	item, err := h.service.Create(r.Context(), guard, input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, item)
}

// List returns the work items visible to the caller
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	guard := h.guardFor(w, r)
	if guard == nil {
		return
	}

	items, err := h.service.List(r.Context(), guard, Status(r.URL.Query().Get("status")))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []WorkItem{}
	}

	httputil.WriteSuccess(w, items)
}

// Get returns one work item
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	guard := h.guardFor(w, r)
	if guard == nil {
		return
	}

	item, err := h.service.Get(r.Context(), guard, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, item)
}

// Update modifies a work item
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	guard := h.guardFor(w, r)
	if guard == nil {
		return
	}

	var input UpdateInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	item, err := h.service.Update(r.Context(), guard, mux.Vars(r)["id"], input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, item)
}

// Delete removes a work item
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	guard := h.guardFor(w, r)
	if guard == nil {
		return
	}

	if err := h.service.Delete(r.Context(), guard, mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// writeServiceError maps service errors onto HTTP statuses. Out-of-scope
// resources deliberately get the same 404 as missing ones.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case err == ErrNotFound:
		httputil.WriteNotFound(w, "work item not found")
	case rbac.IsResourceOutOfScope(err) || rbac.IsPermissionDenied(err):
		rbac.WriteAuthzError(w, err)
	default:
		httputil.WriteError(w, http.StatusBadRequest, err)
	}
}
