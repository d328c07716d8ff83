// Package handlers contains the HTTP handlers for event ingestion and the
// admin surface for routing rules and topic validations.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/api/middleware"
	"github.com/agnostech/event-gateway/internal/gateway"
	"github.com/agnostech/event-gateway/internal/model"
	"github.com/agnostech/event-gateway/internal/pkg/httputil"
	"github.com/agnostech/event-gateway/internal/pkg/logger"
	"github.com/agnostech/event-gateway/internal/store"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// EventsHandler serves event ingestion and archived-event lookups.
type EventsHandler struct {
	gateway gateway.Gateway
}

func NewEventsHandler(g gateway.Gateway) *EventsHandler {
	return &EventsHandler{gateway: g}
}

func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/event", h.HandleIngest)
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.HandleListStored)
		r.Get("/{id}", h.HandleGetStored)
	})
}

// HandleIngest accepts one event, stamps the transport metadata, and runs
// it through the gateway. The response only distinguishes success, schema
// rejection, no destination, and internal failure.
func (h *EventsHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var event model.Event
	if !httputil.DecodeJSON(w, r, &event) {
		return
	}

	if meta := middleware.MetadataFromContext(r.Context()); len(meta) > 0 {
		if event.TransportMetadata == nil {
			event.TransportMetadata = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			event.TransportMetadata[k] = v
		}
	}

	err := h.gateway.Handle(r.Context(), &event)
	switch {
	case err == nil:
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "success"})
	case isSchemaInvalid(err):
		logger.Debug("event rejected by schema", "event_id", event.ID, "error", err)
		httputil.WriteError(w, r, http.StatusBadRequest, "schema validation failed", "")
	case isNoRoute(err):
		httputil.WriteError(w, r, http.StatusNotAcceptable, "no destination found", "")
	default:
		httputil.InternalError(w, r, err)
	}
}

// HandleListStored lists archived events. With an eventType or routingId
// query parameter it filters on that key; otherwise it returns the sample
// page together with the total count.
func (h *EventsHandler) HandleListStored(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		httputil.BadRequest(w, r, err.Error())
		return
	}

	if eventType := r.URL.Query().Get("eventType"); eventType != "" {
		events, err := h.gateway.GetStoredEventsByType(r.Context(), eventType, limit, offset)
		if err != nil {
			httputil.InternalError(w, r, err)
			return
		}
		render.JSON(w, r, events)
		return
	}

	if routingID := r.URL.Query().Get("routingId"); routingID != "" {
		id, err := uuid.Parse(routingID)
		if err != nil {
			httputil.BadRequest(w, r, "invalid routingId")
			return
		}
		events, err := h.gateway.GetStoredEventsByRouting(r.Context(), id, limit, offset)
		if err != nil {
			httputil.InternalError(w, r, err)
			return
		}
		render.JSON(w, r, events)
		return
	}

	events, total, err := h.gateway.GetSampleEvents(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"events": events,
		"total":  total,
	})
}

// HandleGetStored returns one archived event by its storage id.
func (h *EventsHandler) HandleGetStored(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, r, "invalid event id")
		return
	}

	event, err := h.gateway.GetStoredEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, r, "event not found")
			return
		}
		httputil.InternalError(w, r, err)
		return
	}
	render.JSON(w, r, event)
}

func isSchemaInvalid(err error) bool {
	var schemaErr *gateway.SchemaInvalidError
	return errors.As(err, &schemaErr)
}

func isNoRoute(err error) bool {
	var routeErr *gateway.NoRouteError
	return errors.As(err, &routeErr)
}

func pagination(r *http.Request) (limit, offset int64, err error) {
	limit = defaultPageLimit
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("invalid limit")
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}
	return limit, offset, nil
}
