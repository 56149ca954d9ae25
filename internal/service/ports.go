package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/sid-bonds/internal/model"
)

type GuaranteeRepository interface {
	Create(ctx context.Context, g model.Guarantee) (*model.Guarantee, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Guarantee, error)
	List(ctx context.Context, filter model.GuaranteeFilter) ([]model.Guarantee, error)
	Update(ctx context.Context, g model.Guarantee) error
	UpdateState(ctx context.Context, id uuid.UUID, state model.GuaranteeState) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListIDsByContracts(ctx context.Context, contractIDs []uuid.UUID) ([]uuid.UUID, error)
	SaveDocument(ctx context.Context, doc model.GuaranteeDocument) error
	GetDocument(ctx context.Context, guaranteeID uuid.UUID) (*model.GuaranteeDocument, error)
}

type ContractRepository interface {
	Create(ctx context.Context, c model.Contract) (*model.Contract, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]model.Contract, error)
	Update(ctx context.Context, c model.Contract) error
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.Contract, error)
	SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID, parentPath string) error
	Counts(ctx context.Context, id uuid.UUID, confirmedStates []model.OrderState, excludedStates []model.OrderState) (model.ContractCounts, error)
}

type OrderRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.SaleOrder, error)
	Upsert(ctx context.Context, o model.SaleOrder) (*model.SaleOrder, error)
	ListByContracts(ctx context.Context, contractIDs []uuid.UUID) ([]model.SaleOrder, error)
}

type TaskRequest struct {
	Target       model.Target
	AssigneeID   uuid.UUID
	ActivityType string
	Summary      string
	Note         string
	DueDate      time.Time
}

// Notifier posts notes and schedules follow-up tasks on records. ScheduleTask
// reports false when an open task with the same target, assignee, type and
// summary already exists.
type Notifier interface {
	PostNote(ctx context.Context, target model.Target, body string, mentions []uuid.UUID) error
	ScheduleTask(ctx context.Context, req TaskRequest) (bool, error)
}

// GroupDirectory resolves the contact ids of a permission group's members.
// An unknown group yields no members.
type GroupDirectory interface {
	PartnerIDs(ctx context.Context, groupCode string) ([]uuid.UUID, error)
}

type SequenceGenerator interface {
	Next(ctx context.Context, code string) (string, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.GuaranteeEvent) error
}

type ActivityStore interface {
	ListNotes(ctx context.Context, target model.Target) ([]model.Note, error)
	ListActivities(ctx context.Context, target model.Target, openOnly bool) ([]model.Activity, error)
	MarkDone(ctx context.Context, id uuid.UUID, at time.Time) error
}
