package model

import "github.com/google/uuid"

// OrderDomain is the filter a list view applies to sale orders.
type OrderDomain struct {
	CustomerIDs   []uuid.UUID  `json:"customer_ids,omitempty"`
	OrderIDs      []uuid.UUID  `json:"order_ids"`
	States        []OrderState `json:"states,omitempty"`
	ExcludeStates []OrderState `json:"exclude_states,omitempty"`
}

// ActionDescriptor is handed to a generic list/form view opener.
type ActionDescriptor struct {
	Name     string            `json:"name"`
	ResModel string            `json:"res_model"`
	ViewMode string            `json:"view_mode"`
	Domain   OrderDomain       `json:"domain"`
	Context  map[string]string `json:"context,omitempty"`
}
