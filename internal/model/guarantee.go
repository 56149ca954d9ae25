package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GuaranteeType string

const (
	GuaranteeTypeProvisional           GuaranteeType = "provisional"
	GuaranteeTypeCompliance            GuaranteeType = "compliance"
	GuaranteeTypeWarranty              GuaranteeType = "warranty"
	GuaranteeTypeComplianceAndWarranty GuaranteeType = "compliance_warranty"
)

func (t GuaranteeType) Valid() bool {
	switch t {
	case GuaranteeTypeProvisional, GuaranteeTypeCompliance, GuaranteeTypeWarranty, GuaranteeTypeComplianceAndWarranty:
		return true
	}
	return false
}

type GuaranteeState string

const (
	GuaranteeStateDraft     GuaranteeState = "draft"
	GuaranteeStateRequested GuaranteeState = "requested"
	GuaranteeStateActive    GuaranteeState = "active"
	GuaranteeStateExpired   GuaranteeState = "expired"
	GuaranteeStateCancelled GuaranteeState = "cancelled"

	// Bank workflow sub-states.
	GuaranteeStatePendingBank GuaranteeState = "pending_bank"
	GuaranteeStateSent        GuaranteeState = "sent"
	GuaranteeStateReceipt     GuaranteeState = "receipt"
	GuaranteeStateSolicitDev  GuaranteeState = "solicit_dev"
	GuaranteeStateRecovered   GuaranteeState = "recovered"
	GuaranteeStateSolicitCan  GuaranteeState = "solicit_can"
)

func (s GuaranteeState) Valid() bool {
	switch s {
	case GuaranteeStateDraft, GuaranteeStateRequested, GuaranteeStateActive,
		GuaranteeStateExpired, GuaranteeStateCancelled:
		return true
	}
	return s.IsBankState()
}

func (s GuaranteeState) IsBankState() bool {
	switch s {
	case GuaranteeStatePendingBank, GuaranteeStateSent, GuaranteeStateReceipt,
		GuaranteeStateSolicitDev, GuaranteeStateRecovered, GuaranteeStateSolicitCan:
		return true
	}
	return false
}

type Guarantee struct {
	ID          uuid.UUID
	Name        string
	ExternalRef string
	CustomerID  *uuid.UUID
	JournalID   *uuid.UUID
	Currency    string
	Amount      decimal.Decimal
	IssueDate   *time.Time
	DueDate     *time.Time
	Digital     bool
	Reviewed    bool
	Description string
	Type        GuaranteeType
	State       GuaranteeState
	HasDocument bool
	ContractIDs []uuid.UUID `gorm:"-"`
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GuaranteeView is a guarantee with its derived fields resolved from the
// current linked state.
type GuaranteeView struct {
	Guarantee
	BaseAmount decimal.Decimal
	Origin     string
}

type GuaranteeDocument struct {
	GuaranteeID uuid.UUID
	FileName    string
	Content     []byte
	UploadedAt  time.Time
}

type GuaranteeFilter struct {
	States     []GuaranteeState
	CustomerID *uuid.UUID
	ContractID *uuid.UUID
	DueBefore  *time.Time
}

// GuaranteePatch carries the fields a write sets; nil means untouched.
type GuaranteePatch struct {
	ExternalRef *string
	CustomerID  **uuid.UUID
	JournalID   **uuid.UUID
	Currency    *string
	Amount      *decimal.Decimal
	IssueDate   **time.Time
	DueDate     **time.Time
	Digital     *bool
	Reviewed    *bool
	Description *string
	Type        *GuaranteeType
	ContractIDs *[]uuid.UUID
}

func (p GuaranteePatch) Apply(g *Guarantee) {
	if p.ExternalRef != nil {
		g.ExternalRef = *p.ExternalRef
	}
	if p.CustomerID != nil {
		g.CustomerID = *p.CustomerID
	}
	if p.JournalID != nil {
		g.JournalID = *p.JournalID
	}
	if p.Currency != nil {
		g.Currency = *p.Currency
	}
	if p.Amount != nil {
		g.Amount = *p.Amount
	}
	if p.IssueDate != nil {
		g.IssueDate = *p.IssueDate
	}
	if p.DueDate != nil {
		g.DueDate = *p.DueDate
	}
	if p.Digital != nil {
		g.Digital = *p.Digital
	}
	if p.Reviewed != nil {
		g.Reviewed = *p.Reviewed
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.Type != nil {
		g.Type = *p.Type
	}
	if p.ContractIDs != nil {
		g.ContractIDs = append([]uuid.UUID(nil), (*p.ContractIDs)...)
	}
}

// Changes lists the fields the patch touches.
func (p GuaranteePatch) Changes() ChangeSet {
	var cs ChangeSet
	if p.ContractIDs != nil {
		cs = cs.With(FieldContracts)
	}
	if p.CustomerID != nil {
		cs = cs.With(FieldCustomer)
	}
	if p.Amount != nil {
		cs = cs.With(FieldAmount)
	}
	return cs
}

type GuaranteeSummary struct {
	Guarantee   GuaranteeView
	Contracts   []Contract
	Orders      []SaleOrder
	GeneratedAt time.Time
}

type GuaranteeRegister struct {
	Guarantees  []GuaranteeView
	GeneratedAt time.Time
}
