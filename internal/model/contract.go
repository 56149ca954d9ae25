package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contract is a sales quotation acting as a main contract or as an addendum
// of one.
type Contract struct {
	ID            uuid.UUID
	Name          string
	ParentID      *uuid.UUID
	ParentPath    string
	AmountUntaxed decimal.Decimal
	AmountTotal   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ContractCounts struct {
	Children   int64 `json:"children"`
	Orders     int64 `json:"orders"`
	Guarantees int64 `json:"guarantees"`
	Purchases  int64 `json:"purchases"`
}

type ContractView struct {
	Contract
	ChildIDs          []uuid.UUID
	EffectiveCustomer *uuid.UUID
	ConfirmedOrderIDs []uuid.UUID
	Counts            ContractCounts
}

// ContractPatch carries the fields a contract write sets; nil means untouched.
type ContractPatch struct {
	Name          *string
	ParentID      **uuid.UUID
	ChildIDs      *[]uuid.UUID
	AmountUntaxed *decimal.Decimal
	AmountTotal   *decimal.Decimal
}
