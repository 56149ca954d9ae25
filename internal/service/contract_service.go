package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/model"
)

type ContractService struct {
	repo     ContractRepository
	orders   OrderRepository
	tx       Transactor
	notifier Notifier
	filter   OrderFilter
	log      zerolog.Logger
}

func NewContractService(
	repo ContractRepository,
	orders OrderRepository,
	tx Transactor,
	notifier Notifier,
	filter OrderFilter,
	log zerolog.Logger,
) *ContractService {
	return &ContractService{
		repo:     repo,
		orders:   orders,
		tx:       tx,
		notifier: notifier,
		filter:   filter,
		log:      log,
	}
}

type CreateContractInput struct {
	Name          string
	ParentID      *uuid.UUID
	ChildIDs      []uuid.UUID
	AmountUntaxed decimal.Decimal
	AmountTotal   decimal.Decimal
	Principal     model.Principal
}

func (s *ContractService) Create(ctx context.Context, input CreateContractInput) (*model.ContractView, error) {
	if !input.Principal.CanWrite() {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	var (
		contract model.Contract
		res      customerResolution
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		created, err := s.repo.Create(ctx, model.Contract{
			Name:          name,
			AmountUntaxed: input.AmountUntaxed,
			AmountTotal:   input.AmountTotal,
		})
		if err != nil {
			return err
		}
		contract = *created
		res, err = s.applyHierarchy(ctx, *created, input.ParentID, uniqueIDs(input.ChildIDs), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.distinct > 1 {
		s.warnMultipleCustomers(ctx, contract, res)
	}
	return s.Get(ctx, contract.ID)
}

func (s *ContractService) Update(ctx context.Context, id uuid.UUID, patch model.ContractPatch, principal model.Principal) (*model.ContractView, error) {
	if !principal.CanWrite() {
		return nil, ErrPermissionDenied
	}

	var (
		contract model.Contract
		res      customerResolution
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", ErrInvalidInput)
			}
			c.Name = name
		}
		if patch.AmountUntaxed != nil {
			c.AmountUntaxed = *patch.AmountUntaxed
		}
		if patch.AmountTotal != nil {
			c.AmountTotal = *patch.AmountTotal
		}
		if err := s.repo.Update(ctx, *c); err != nil {
			return err
		}

		children, err := s.repo.ListChildren(ctx, c.ID)
		if err != nil {
			return err
		}
		currentChildren := make([]uuid.UUID, 0, len(children))
		for _, child := range children {
			currentChildren = append(currentChildren, child.ID)
		}

		parentID := c.ParentID
		if patch.ParentID != nil {
			parentID = *patch.ParentID
		}
		childIDs := currentChildren
		if patch.ChildIDs != nil {
			childIDs = uniqueIDs(*patch.ChildIDs)
		}
		contract = *c
		res, err = s.applyHierarchy(ctx, *c, parentID, childIDs, currentChildren)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.distinct > 1 {
		s.warnMultipleCustomers(ctx, contract, res)
	}
	return s.Get(ctx, id)
}

func (s *ContractService) Get(ctx context.Context, id uuid.UUID) (*model.ContractView, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := s.repo.ListChildren(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	res, err := s.resolveCustomer(ctx, *c)
	if err != nil {
		return nil, err
	}
	states, excluded := s.filter.Domain()
	counts, err := s.repo.Counts(ctx, c.ID, states, excluded)
	if err != nil {
		return nil, err
	}

	view := &model.ContractView{
		Contract:          *c,
		ChildIDs:          make([]uuid.UUID, 0, len(children)),
		EffectiveCustomer: res.customer,
		ConfirmedOrderIDs: make([]uuid.UUID, 0, len(res.confirmed)),
		Counts:            counts,
	}
	for _, child := range children {
		view.ChildIDs = append(view.ChildIDs, child.ID)
	}
	for _, o := range res.confirmed {
		view.ConfirmedOrderIDs = append(view.ConfirmedOrderIDs, o.ID)
	}
	return view, nil
}

// EffectiveCustomer is the customer of the most recent confirmed order of the
// contract, or nil when it has none.
func (s *ContractService) EffectiveCustomer(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.resolveCustomer(ctx, *c)
	if err != nil {
		return nil, err
	}
	return res.customer, nil
}

func (s *ContractService) OrdersAction(ctx context.Context, id uuid.UUID) (*model.ActionDescriptor, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.resolveCustomer(ctx, *c)
	if err != nil {
		return nil, err
	}

	states, excluded := s.filter.Domain()
	domain := model.OrderDomain{
		OrderIDs:      make([]uuid.UUID, 0, len(res.confirmed)),
		States:        states,
		ExcludeStates: excluded,
	}
	for _, o := range res.confirmed {
		domain.OrderIDs = append(domain.OrderIDs, o.ID)
	}
	actionCtx := map[string]string{"create": "false"}
	if res.customer != nil {
		domain.CustomerIDs = []uuid.UUID{*res.customer}
		actionCtx["default_partner_id"] = res.customer.String()
	}
	return &model.ActionDescriptor{
		Name:     fmt.Sprintf("Orders of %s", c.Name),
		ResModel: "sale.order",
		ViewMode: "tree,form",
		Domain:   domain,
		Context:  actionCtx,
	}, nil
}

// applyHierarchy validates and stores the parent and addenda of c. The
// hierarchy is strictly two levels deep. It returns the customer resolution of
// c so the caller can warn about mixed customers once the write commits.
func (s *ContractService) applyHierarchy(
	ctx context.Context,
	c model.Contract,
	parentID *uuid.UUID,
	childIDs []uuid.UUID,
	currentChildren []uuid.UUID,
) (customerResolution, error) {
	if parentID != nil && len(childIDs) > 0 {
		return customerResolution{}, fmt.Errorf("%w: contract %s cannot have a parent contract and addenda at the same time", ErrValidation, c.Name)
	}

	own, err := s.resolveCustomer(ctx, c)
	if err != nil {
		return customerResolution{}, err
	}

	if parentID != nil {
		if *parentID == c.ID {
			return customerResolution{}, fmt.Errorf("%w: contract %s cannot be its own parent", ErrValidation, c.Name)
		}
		parent, err := s.load(ctx, *parentID)
		if err != nil {
			return customerResolution{}, err
		}
		if parent.ParentID != nil {
			return customerResolution{}, fmt.Errorf("%w: %s is an addendum and cannot have addenda", ErrValidation, parent.Name)
		}
		parentRes, err := s.resolveCustomer(ctx, *parent)
		if err != nil {
			return customerResolution{}, err
		}
		if customersDiffer(own.customer, parentRes.customer) {
			return customerResolution{}, fmt.Errorf("%w: contract %s and its parent %s belong to different customers", ErrValidation, c.Name, parent.Name)
		}
	}

	children := make([]model.Contract, 0, len(childIDs))
	for _, childID := range childIDs {
		if childID == c.ID {
			return customerResolution{}, fmt.Errorf("%w: contract %s cannot be its own addendum", ErrValidation, c.Name)
		}
		child, err := s.load(ctx, childID)
		if err != nil {
			return customerResolution{}, err
		}
		if child.ParentID != nil && *child.ParentID != c.ID {
			return customerResolution{}, fmt.Errorf("%w: %s is already an addendum of another contract", ErrValidation, child.Name)
		}
		grandChildren, err := s.repo.ListChildren(ctx, child.ID)
		if err != nil {
			return customerResolution{}, err
		}
		if len(grandChildren) > 0 {
			return customerResolution{}, fmt.Errorf("%w: %s has addenda and cannot become an addendum", ErrValidation, child.Name)
		}
		childRes, err := s.resolveCustomer(ctx, *child)
		if err != nil {
			return customerResolution{}, err
		}
		if customersDiffer(own.customer, childRes.customer) {
			return customerResolution{}, fmt.Errorf("%w: contract %s and its addendum %s belong to different customers", ErrValidation, c.Name, child.Name)
		}
		children = append(children, *child)
	}

	if err := s.repo.SetParent(ctx, c.ID, parentID, parentPath(c.ID, parentID)); err != nil {
		return customerResolution{}, err
	}

	keep := make(map[uuid.UUID]struct{}, len(children))
	for _, child := range children {
		keep[child.ID] = struct{}{}
		if err := s.repo.SetParent(ctx, child.ID, &c.ID, parentPath(child.ID, &c.ID)); err != nil {
			return customerResolution{}, err
		}
	}
	for _, oldChild := range currentChildren {
		if _, ok := keep[oldChild]; ok {
			continue
		}
		if err := s.repo.SetParent(ctx, oldChild, nil, parentPath(oldChild, nil)); err != nil {
			return customerResolution{}, err
		}
	}

	return own, nil
}

// checkCustomers re-verifies that contract id and its parent and addenda still
// share one effective customer after its orders changed.
func (s *ContractService) checkCustomers(ctx context.Context, id uuid.UUID) (model.Contract, customerResolution, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return model.Contract{}, customerResolution{}, err
	}
	own, err := s.resolveCustomer(ctx, *c)
	if err != nil {
		return model.Contract{}, customerResolution{}, err
	}

	if c.ParentID != nil {
		parent, err := s.load(ctx, *c.ParentID)
		if err != nil {
			return model.Contract{}, customerResolution{}, err
		}
		parentRes, err := s.resolveCustomer(ctx, *parent)
		if err != nil {
			return model.Contract{}, customerResolution{}, err
		}
		if customersDiffer(own.customer, parentRes.customer) {
			return model.Contract{}, customerResolution{}, fmt.Errorf("%w: contract %s and its parent %s belong to different customers", ErrValidation, c.Name, parent.Name)
		}
	}

	children, err := s.repo.ListChildren(ctx, c.ID)
	if err != nil {
		return model.Contract{}, customerResolution{}, err
	}
	for _, child := range children {
		childRes, err := s.resolveCustomer(ctx, child)
		if err != nil {
			return model.Contract{}, customerResolution{}, err
		}
		if customersDiffer(own.customer, childRes.customer) {
			return model.Contract{}, customerResolution{}, fmt.Errorf("%w: contract %s and its addendum %s belong to different customers", ErrValidation, c.Name, child.Name)
		}
	}
	return *c, own, nil
}

type customerResolution struct {
	customer  *uuid.UUID
	distinct  int
	confirmed []model.SaleOrder
}

func (s *ContractService) resolveCustomer(ctx context.Context, c model.Contract) (customerResolution, error) {
	orders, err := s.orders.ListByContracts(ctx, []uuid.UUID{c.ID})
	if err != nil {
		return customerResolution{}, err
	}
	return resolveEffectiveCustomer(orders, s.filter), nil
}

// resolveEffectiveCustomer picks the customer of the most recent confirmed
// order. Ties on the order date fall back to the order reference.
func resolveEffectiveCustomer(orders []model.SaleOrder, filter OrderFilter) customerResolution {
	var res customerResolution
	seen := make(map[uuid.UUID]struct{})
	for _, o := range orders {
		if !filter.Confirmed(o.State) {
			continue
		}
		res.confirmed = append(res.confirmed, o)
		if o.CustomerID != nil {
			seen[*o.CustomerID] = struct{}{}
		}
	}
	res.distinct = len(seen)

	sort.SliceStable(res.confirmed, func(i, j int) bool {
		a, b := res.confirmed[i], res.confirmed[j]
		if !a.DateOrder.Equal(b.DateOrder) {
			return a.DateOrder.After(b.DateOrder)
		}
		return a.Name > b.Name
	})
	for _, o := range res.confirmed {
		if o.CustomerID != nil {
			id := *o.CustomerID
			res.customer = &id
			break
		}
	}
	return res
}

func (s *ContractService) warnMultipleCustomers(ctx context.Context, c model.Contract, res customerResolution) {
	body := fmt.Sprintf(
		"Contract %s has confirmed orders for %d different customers. The customer of the most recent order (%s) is used.",
		c.Name, res.distinct, res.customer,
	)
	if s.notifier == nil {
		s.log.Warn().Str("contract", c.Name).Int("customers", res.distinct).Msg("contract has multiple customers")
		return
	}
	target := model.Target{Model: model.ResModelContract, ID: c.ID}
	if err := s.notifier.PostNote(ctx, target, body, nil); err != nil {
		s.log.Warn().Err(err).Str("contract", c.Name).Msg("post multiple customers note failed")
	}
}

func (s *ContractService) load(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: contract %s", ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

func customersDiffer(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a != *b
}

func parentPath(id uuid.UUID, parentID *uuid.UUID) string {
	if parentID == nil {
		return id.String() + "/"
	}
	return parentID.String() + "/" + id.String() + "/"
}
