package service

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/sid-bonds/internal/config"
	"github.com/nurpe/sid-bonds/internal/model"
)

// OrderFilter decides which sale orders count as confirmed.
type OrderFilter string

const (
	OrderFilterSale      OrderFilter = config.OrderFilterSale
	OrderFilterNotCancel OrderFilter = config.OrderFilterNotCancel
)

func (f OrderFilter) Confirmed(state model.OrderState) bool {
	if f == OrderFilterNotCancel {
		return state != model.OrderStateCancel
	}
	return state == model.OrderStateSale
}

// Domain returns the state predicate in the form a list view expects.
func (f OrderFilter) Domain() (states, excluded []model.OrderState) {
	if f == OrderFilterNotCancel {
		return nil, []model.OrderState{model.OrderStateCancel}
	}
	return []model.OrderState{model.OrderStateSale}, nil
}

type BasePolicy struct {
	Filter           OrderFilter
	ContractFallback bool
}

type BaseResult struct {
	Amount decimal.Decimal
	Orders []model.SaleOrder
}

// ComputeBaseAmount sums the untaxed amount of the confirmed orders reachable
// from the guarantee's contracts that belong to the guarantee's customer.
func (p BasePolicy) ComputeBaseAmount(g model.Guarantee, contracts []model.Contract, orders []model.SaleOrder) BaseResult {
	result := BaseResult{Amount: decimal.Zero}
	if len(g.ContractIDs) == 0 || g.CustomerID == nil {
		return result
	}

	linked := make(map[uuid.UUID]struct{}, len(g.ContractIDs))
	for _, id := range g.ContractIDs {
		linked[id] = struct{}{}
	}

	withOrders := make(map[uuid.UUID]struct{})
	for _, o := range orders {
		if o.ContractID == nil {
			continue
		}
		if _, ok := linked[*o.ContractID]; !ok {
			continue
		}
		withOrders[*o.ContractID] = struct{}{}
		if o.CustomerID == nil || *o.CustomerID != *g.CustomerID {
			continue
		}
		if !p.Filter.Confirmed(o.State) {
			continue
		}
		result.Amount = result.Amount.Add(o.AmountUntaxed)
		result.Orders = append(result.Orders, o)
	}

	if p.ContractFallback {
		for _, c := range contracts {
			if _, ok := linked[c.ID]; !ok {
				continue
			}
			if _, ok := withOrders[c.ID]; ok {
				continue
			}
			amount := c.AmountUntaxed
			if amount.IsZero() {
				amount = c.AmountTotal
			}
			result.Amount = result.Amount.Add(amount)
		}
	}

	sort.Slice(result.Orders, func(i, j int) bool {
		return result.Orders[i].Name < result.Orders[j].Name
	})
	return result
}

func originOf(orders []model.SaleOrder) string {
	names := make([]string, 0, len(orders))
	for _, o := range orders {
		names = append(names, o.Name)
	}
	return strings.Join(names, ", ")
}

type baseCalculator struct {
	contracts ContractRepository
	orders    OrderRepository
	policy    BasePolicy
}

func (b baseCalculator) compute(ctx context.Context, g model.Guarantee) (BaseResult, error) {
	if len(g.ContractIDs) == 0 || g.CustomerID == nil {
		return BaseResult{Amount: decimal.Zero}, nil
	}
	contracts, err := b.contracts.GetMany(ctx, g.ContractIDs)
	if err != nil {
		return BaseResult{}, err
	}
	orders, err := b.orders.ListByContracts(ctx, g.ContractIDs)
	if err != nil {
		return BaseResult{}, err
	}
	return b.policy.ComputeBaseAmount(g, contracts, orders), nil
}

func (b baseCalculator) view(ctx context.Context, g model.Guarantee) (*model.GuaranteeView, error) {
	base, err := b.compute(ctx, g)
	if err != nil {
		return nil, err
	}
	return &model.GuaranteeView{
		Guarantee:  g,
		BaseAmount: base.Amount,
		Origin:     originOf(base.Orders),
	}, nil
}
