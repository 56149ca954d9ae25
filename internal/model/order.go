package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderState string

const (
	OrderStateDraft  OrderState = "draft"
	OrderStateSent   OrderState = "sent"
	OrderStateSale   OrderState = "sale"
	OrderStateDone   OrderState = "done"
	OrderStateCancel OrderState = "cancel"
)

func (s OrderState) Valid() bool {
	switch s {
	case OrderStateDraft, OrderStateSent, OrderStateSale, OrderStateDone, OrderStateCancel:
		return true
	}
	return false
}

// SaleOrder mirrors the order records owned by the sales application.
type SaleOrder struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	ContractID    *uuid.UUID      `json:"contract_id"`
	CustomerID    *uuid.UUID      `json:"customer_id"`
	State         OrderState      `json:"state"`
	AmountUntaxed decimal.Decimal `json:"amount_untaxed"`
	DateOrder     time.Time       `json:"date_order"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
