// Package router selects a destination topic for an event by evaluating an
// ordered list of routing rules.
package router

import (
	"github.com/agnostech/event-gateway/internal/model"
)

// Route returns the first rule in rules that matches the event, or nil when
// none does. Rules are evaluated strictly in the order given; the caller
// (storage) is responsible for sorting them by their Order field.
func Route(rules []model.TopicRoutingRule, event *model.Event) *model.TopicRoutingRule {
	for i := range rules {
		if rules[i].Matches(event) {
			return &rules[i]
		}
	}
	return nil
}
