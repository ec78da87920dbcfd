package audit

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/practicehub/practicehub/pkg/httputil"
)

// Handlers provides the audit query HTTP surface. Route-level permission
// gating (security:read:all) is applied where the routes are registered.
type Handlers struct {
	store *DBLogger
}

// NewHandlers creates audit handlers over the database event store
func NewHandlers(store *DBLogger) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers the audit routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/events", h.SearchEvents).Methods("GET")
}

// SearchEvents queries the audit trail. Supported query parameters:
// user_id, organization_id, decision, resource, resource_id, event_type
// (repeatable), since, until (RFC 3339), limit, offset.
func (h *Handlers) SearchEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := SearchFilter{
		UserID:         query.Get("user_id"),
		OrganizationID: query.Get("organization_id"),
		Resource:       query.Get("resource"),
		ResourceID:     query.Get("resource_id"),
	}

	if v := query.Get("decision"); v != "" {
		decision := Decision(v)
		filter.Decision = &decision
	}

	for _, v := range query["event_type"] {
		filter.EventTypes = append(filter.EventTypes, EventType(v))
	}

	if v := query.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid since timestamp")
			return
		}
		filter.StartTime = &since
	}
	if v := query.Get("until"); v != "" {
		until, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid until timestamp")
			return
		}
		filter.EndTime = &until
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}
	filter.Limit = limit

	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.WriteBadRequest(w, "invalid offset")
		return
	}
	filter.Offset = offset

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if events == nil {
		events = []Event{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
