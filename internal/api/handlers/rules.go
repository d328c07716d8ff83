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

// RulesHandler serves the routing rule admin endpoints.
type RulesHandler struct {
	gateway gateway.Gateway
}

func NewRulesHandler(g gateway.Gateway) *RulesHandler {
	return &RulesHandler{gateway: g}
}

func (h *RulesHandler) RegisterRoutes(r chi.Router) {
	r.Route("/routing-rules", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// RoutingRuleRequest is the create/update body. The server assigns the id
// on create; an id in the body is ignored.
type RoutingRuleRequest struct {
	Order                 int32            `json:"order"`
	Topic                 model.Topic      `json:"topic"`
	EventTypeCondition    model.Condition  `json:"eventTypeCondition"`
	EventVersionCondition *model.Condition `json:"eventVersionCondition,omitempty"`
	Description           *string          `json:"description,omitempty"`
}

func (req *RoutingRuleRequest) toRule(id uuid.UUID) *model.TopicRoutingRule {
	return &model.TopicRoutingRule{
		ID:                    id,
		Order:                 req.Order,
		Topic:                 req.Topic,
		EventTypeCondition:    req.EventTypeCondition,
		EventVersionCondition: req.EventVersionCondition,
		Description:           req.Description,
	}
}

func (h *RulesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	rules, err := h.gateway.GetRoutingRules(r.Context())
	if err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	if rules == nil {
		rules = []model.TopicRoutingRule{}
	}
	render.JSON(w, r, rules)
}

func (h *RulesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req RoutingRuleRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.gateway.AddRoutingRule(r.Context(), req.toRule(uuid.New())); err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RulesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, r, "invalid rule id")
		return
	}
	var req RoutingRuleRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.gateway.UpdateRoutingRule(r.Context(), id, req.toRule(id)); err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RulesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, r, "invalid rule id")
		return
	}
	if err := h.gateway.DeleteRoutingRule(r.Context(), id); err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
