package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/agnostech/event-gateway/internal/gateway"
	"github.com/agnostech/event-gateway/internal/model"
	"github.com/agnostech/event-gateway/internal/pkg/httputil"
)

// ValidationsHandler serves the topic validation admin endpoints.
type ValidationsHandler struct {
	gateway gateway.Gateway
}

func NewValidationsHandler(g gateway.Gateway) *ValidationsHandler {
	return &ValidationsHandler{gateway: g}
}

func (h *ValidationsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/topic-validations", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// TopicValidationRequest is the create body; the server assigns the id.
type TopicValidationRequest struct {
	Topic  model.Topic      `json:"topic"`
	Schema model.DataSchema `json:"schema"`
}

// HandleList returns all validation configs grouped by topic.
func (h *ValidationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	validations, err := h.gateway.GetTopicValidations(r.Context())
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	if validations == nil {
		validations = map[model.Topic][]model.TopicValidationConfig{}
	}
	render.JSON(w, r, validations)
}

func (h *ValidationsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req TopicValidationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	validation := &model.TopicValidationConfig{
		ID:     uuid.New(),
		Topic:  req.Topic,
		Schema: req.Schema,
	}
	if err := h.gateway.AddTopicValidation(r.Context(), validation); err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ValidationsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, r, "invalid validation id")
		return
	}
	if err := h.gateway.DeleteTopicValidation(r.Context(), id); err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
