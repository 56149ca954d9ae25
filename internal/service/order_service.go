package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/model"
)

// OrderService receives sale order changes from the sales application and
// re-runs the variance review of every guarantee whose order base depends on
// the order. Contracts touched by the order are re-checked for a consistent
// customer across their hierarchy.
type OrderService struct {
	orders     OrderRepository
	guarantees GuaranteeRepository
	contracts  *ContractService
	bonds      *GuaranteeService
	tx         Transactor
	log        zerolog.Logger
}

func NewOrderService(
	orders OrderRepository,
	guarantees GuaranteeRepository,
	contracts *ContractService,
	bonds *GuaranteeService,
	tx Transactor,
	log zerolog.Logger,
) *OrderService {
	return &OrderService{
		orders:     orders,
		guarantees: guarantees,
		contracts:  contracts,
		bonds:      bonds,
		tx:         tx,
		log:        log,
	}
}

type UpsertOrderInput struct {
	ID            uuid.UUID
	Name          string
	ContractID    *uuid.UUID
	CustomerID    *uuid.UUID
	State         model.OrderState
	AmountUntaxed decimal.Decimal
	DateOrder     time.Time
	Principal     model.Principal
}

type UpsertOrderResult struct {
	Order    model.SaleOrder
	Reviewed map[uuid.UUID]VarianceOutcome
}

func (s *OrderService) Upsert(ctx context.Context, input UpsertOrderInput) (*UpsertOrderResult, error) {
	if !input.Principal.CanWrite() {
		return nil, ErrPermissionDenied
	}
	if input.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !input.State.Valid() {
		return nil, fmt.Errorf("%w: unknown order state %q", ErrInvalidInput, input.State)
	}
	if input.DateOrder.IsZero() {
		input.DateOrder = time.Now()
	}

	result := &UpsertOrderResult{Reviewed: map[uuid.UUID]VarianceOutcome{}}
	var (
		out     outbox
		warn    *model.Contract
		warnRes customerResolution
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		distinctBefore := 0
		if input.ContractID != nil {
			c, err := s.contracts.load(ctx, *input.ContractID)
			if err != nil {
				return err
			}
			res, err := s.contracts.resolveCustomer(ctx, *c)
			if err != nil {
				return err
			}
			distinctBefore = res.distinct
		}

		var contractIDs []uuid.UUID
		if input.ContractID != nil {
			contractIDs = append(contractIDs, *input.ContractID)
		}
		previous, err := s.orders.Get(ctx, input.ID)
		switch {
		case err == nil:
			if previous.ContractID != nil {
				contractIDs = append(contractIDs, *previous.ContractID)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		affected, err := s.affectedGuarantees(ctx, uniqueIDs(contractIDs))
		if err != nil {
			return err
		}
		before := make(map[uuid.UUID]decimal.Decimal, len(affected))
		for _, g := range affected {
			base, err := s.bonds.base.compute(ctx, g)
			if err != nil {
				return err
			}
			before[g.ID] = base.Amount
		}

		saved, err := s.orders.Upsert(ctx, model.SaleOrder{
			ID:            input.ID,
			Name:          name,
			ContractID:    input.ContractID,
			CustomerID:    input.CustomerID,
			State:         input.State,
			AmountUntaxed: input.AmountUntaxed,
			DateOrder:     input.DateOrder,
		})
		if err != nil {
			return err
		}
		result.Order = *saved

		for _, id := range uniqueIDs(contractIDs) {
			c, res, err := s.contracts.checkCustomers(ctx, id)
			if err != nil {
				return err
			}
			if input.ContractID != nil && id == *input.ContractID && res.distinct > 1 && res.distinct > distinctBefore {
				warn, warnRes = &c, res
			}
		}

		for _, g := range affected {
			outcome, err := s.bonds.reviewOrderBase(ctx, g, before[g.ID], &out)
			if err != nil {
				return err
			}
			result.Reviewed[g.ID] = outcome
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bonds.flush(ctx, &out)
	if warn != nil {
		s.contracts.warnMultipleCustomers(ctx, *warn, warnRes)
	}

	s.log.Info().
		Str("order", result.Order.Name).
		Int("guarantees_reviewed", len(result.Reviewed)).
		Msg("sale order synchronized")
	return result, nil
}

func (s *OrderService) affectedGuarantees(ctx context.Context, contractIDs []uuid.UUID) ([]model.Guarantee, error) {
	if len(contractIDs) == 0 {
		return nil, nil
	}
	ids, err := s.guarantees.ListIDsByContracts(ctx, contractIDs)
	if err != nil {
		return nil, err
	}
	result := make([]model.Guarantee, 0, len(ids))
	for _, id := range ids {
		g, err := s.guarantees.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, *g)
	}
	return result, nil
}
