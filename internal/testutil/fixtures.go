package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/sid-bonds/internal/config"
	"github.com/nurpe/sid-bonds/internal/model"
	"github.com/nurpe/sid-bonds/internal/service"
)

// Tx runs fn without a real transaction and tracks whether one is open.
type Tx struct {
	open atomic.Int32
}

func (t *Tx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.open.Add(1)
	defer t.open.Add(-1)
	return fn(ctx)
}

func (t *Tx) Open() bool {
	return t.open.Load() > 0
}

// Events records every published guarantee event. Publishing fails with Fail
// when it is set.
type Events struct {
	Fail error

	tx       *Tx
	mu       sync.Mutex
	events   []model.GuaranteeEvent
	insideTx int
}

func (e *Events) Publish(_ context.Context, event model.GuaranteeEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tx != nil && e.tx.Open() {
		e.insideTx++
	}
	if e.Fail != nil {
		return e.Fail
	}
	e.events = append(e.events, event)
	return nil
}

// InsideTx counts the events published while a transaction was still open.
func (e *Events) InsideTx() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insideTx
}

func (e *Events) All() []model.GuaranteeEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.GuaranteeEvent(nil), e.events...)
}

func (e *Events) OfType(t model.GuaranteeEventType) []model.GuaranteeEvent {
	var result []model.GuaranteeEvent
	for _, event := range e.All() {
		if event.Type == t {
			result = append(result, event)
		}
	}
	return result
}

// FixedClock is the time every Env service reads as now.
var FixedClock = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func BondsConfig() config.BondsConfig {
	return config.BondsConfig{
		OrderFilter:       config.OrderFilterSale,
		VarianceThreshold: decimal.NewFromInt(3),
		ManagerGroup:      "bonds_manager",
		SequenceCode:      "sid_bonds.orders",
		SequencePrefix:    "AVAL/",
		SequencePadding:   5,
		SweepSchedule:     "@daily",
		TaskDueDays:       3,
	}
}

// Env wires the services over one in-memory store.
type Env struct {
	Store      *Store
	Tx         *Tx
	Events     *Events
	Guarantees *service.GuaranteeService
	Contracts  *service.ContractService
	Orders     *service.OrderService
	Activities *service.ActivityService
}

func NewEnv(cfg config.BondsConfig) *Env {
	tx := &Tx{}
	store := NewStore()
	store.tx = tx
	events := &Events{tx: tx}
	log := zerolog.Nop()

	bonds := service.NewGuaranteeService(service.GuaranteeDeps{
		Guarantees: store.Guarantees(),
		Contracts:  store.Contracts(),
		Orders:     store.Orders(),
		Sequence:   store.Sequence(),
		Tx:         tx,
		Notifier:   store.Activities(),
		Groups:     store.Groups(),
		Events:     events,
		Clock:      func() time.Time { return FixedClock },
	}, cfg, log)

	contracts := service.NewContractService(
		store.Contracts(), store.Orders(), tx, store.Activities(), service.OrderFilter(cfg.OrderFilter), log,
	)

	return &Env{
		Store:      store,
		Tx:         tx,
		Events:     events,
		Guarantees: bonds,
		Contracts:  contracts,
		Orders:     service.NewOrderService(store.Orders(), store.Guarantees(), contracts, bonds, tx, log),
		Activities: service.NewActivityService(store.Activities(), bonds),
	}
}

func User() model.Principal {
	return model.Principal{UserID: uuid.New(), Roles: []string{model.RoleBondsUser}}
}

func Manager() model.Principal {
	return model.Principal{UserID: uuid.New(), Roles: []string{model.RoleBondsManager}}
}

func Reader() model.Principal {
	return model.Principal{UserID: uuid.New()}
}

// SeedContract stores a contract with no parent.
func (e *Env) SeedContract(name string) model.Contract {
	c, _ := e.Store.Contracts().Create(context.Background(), model.Contract{
		Name:          name,
		AmountUntaxed: decimal.Zero,
		AmountTotal:   decimal.Zero,
	})
	_ = e.Store.Contracts().SetParent(context.Background(), c.ID, nil, c.ID.String()+"/")
	stored, _ := e.Store.Contracts().Get(context.Background(), c.ID)
	return *stored
}

// SeedOrder stores a sale order directly, bypassing the order service.
func (e *Env) SeedOrder(name string, contractID, customerID uuid.UUID, state model.OrderState, amount int64, date time.Time) model.SaleOrder {
	o, _ := e.Store.Orders().Upsert(context.Background(), model.SaleOrder{
		ID:            uuid.New(),
		Name:          name,
		ContractID:    &contractID,
		CustomerID:    &customerID,
		State:         state,
		AmountUntaxed: decimal.NewFromInt(amount),
		DateOrder:     date,
	})
	return *o
}

func fmtSequence(prefix string, n int) string {
	return fmt.Sprintf("%s%05d", prefix, n)
}
