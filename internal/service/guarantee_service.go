package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/config"
	"github.com/nurpe/sid-bonds/internal/model"
)

type GuaranteeService struct {
	repo      GuaranteeRepository
	contracts ContractRepository
	orders    OrderRepository
	sequence  SequenceGenerator
	tx        Transactor
	events    EventPublisher
	base      baseCalculator
	reviewer  varianceReviewer
	cfg       config.BondsConfig
	log       zerolog.Logger
	now       func() time.Time
}

type GuaranteeDeps struct {
	Guarantees GuaranteeRepository
	Contracts  ContractRepository
	Orders     OrderRepository
	Sequence   SequenceGenerator
	Tx         Transactor
	Notifier   Notifier
	Groups     GroupDirectory
	Events     EventPublisher
	Clock      func() time.Time
}

func NewGuaranteeService(deps GuaranteeDeps, cfg config.BondsConfig, log zerolog.Logger) *GuaranteeService {
	s := &GuaranteeService{
		repo:      deps.Guarantees,
		contracts: deps.Contracts,
		orders:    deps.Orders,
		sequence:  deps.Sequence,
		tx:        deps.Tx,
		events:    deps.Events,
		cfg:       cfg,
		log:       log,
		now:       deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.base = baseCalculator{
		contracts: deps.Contracts,
		orders:    deps.Orders,
		policy: BasePolicy{
			Filter:           OrderFilter(cfg.OrderFilter),
			ContractFallback: cfg.ContractFallback,
		},
	}
	s.reviewer = varianceReviewer{
		policy: VariancePolicy{
			Threshold:    cfg.VarianceThreshold,
			ManagerGroup: cfg.ManagerGroup,
			TaskDueDays:  cfg.TaskDueDays,
		},
		notifier: deps.Notifier,
		groups:   deps.Groups,
		log:      log,
		now:      func() time.Time { return s.now() },
	}
	return s
}

type CreateGuaranteeInput struct {
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
	Type        model.GuaranteeType
	ContractIDs []uuid.UUID
	Principal   model.Principal
}

func (s *GuaranteeService) Create(ctx context.Context, input CreateGuaranteeInput) (*model.GuaranteeView, error) {
	if !input.Principal.CanWrite() {
		return nil, ErrPermissionDenied
	}

	g := model.Guarantee{
		Name:        strings.TrimSpace(input.Name),
		ExternalRef: strings.TrimSpace(input.ExternalRef),
		CustomerID:  input.CustomerID,
		JournalID:   input.JournalID,
		Currency:    strings.ToUpper(strings.TrimSpace(input.Currency)),
		Amount:      input.Amount,
		IssueDate:   input.IssueDate,
		DueDate:     input.DueDate,
		Digital:     input.Digital,
		Reviewed:    input.Reviewed,
		Description: input.Description,
		Type:        input.Type,
		State:       model.GuaranteeStateDraft,
		ContractIDs: uniqueIDs(input.ContractIDs),
		CreatedBy:   input.Principal.UserID,
	}
	if g.Currency == "" {
		g.Currency = "EUR"
	}
	if g.Type == "" {
		g.Type = model.GuaranteeTypeProvisional
	}

	var created *model.Guarantee
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.validate(ctx, g); err != nil {
			return err
		}
		if g.Name == "" {
			name, err := s.sequence.Next(ctx, s.cfg.SequenceCode)
			if err != nil {
				return err
			}
			g.Name = name
		}
		var err error
		created, err = s.repo.Create(ctx, g)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("guarantee", created.Name).Str("created_by", created.CreatedBy.String()).Msg("guarantee created")
	return s.base.view(ctx, *created)
}

func (s *GuaranteeService) Get(ctx context.Context, id uuid.UUID) (*model.GuaranteeView, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.base.view(ctx, *g)
}

func (s *GuaranteeService) List(ctx context.Context, filter model.GuaranteeFilter) ([]model.GuaranteeView, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]model.GuaranteeView, 0, len(items))
	for _, g := range items {
		view, err := s.base.view(ctx, g)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

type UpdateGuaranteeResult struct {
	Guarantee model.GuaranteeView
	Variance  VarianceOutcome
}

// Update applies patch and runs the variance review against the order base
// captured before the write.
func (s *GuaranteeService) Update(ctx context.Context, id uuid.UUID, patch model.GuaranteePatch, principal model.Principal) (*UpdateGuaranteeResult, error) {
	if !principal.CanWrite() {
		return nil, ErrPermissionDenied
	}

	var (
		result UpdateGuaranteeResult
		out    outbox
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		g, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		before, err := s.base.compute(ctx, *g)
		if err != nil {
			return err
		}

		patch.Apply(g)
		g.ContractIDs = uniqueIDs(g.ContractIDs)
		if err := s.validate(ctx, *g); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, *g); err != nil {
			return err
		}

		after, err := s.base.compute(ctx, *g)
		if err != nil {
			return err
		}
		outcome, err := s.reviewer.review(ctx, *g, before.Amount, after.Amount, patch.Changes(), &out)
		if err != nil {
			return err
		}

		result.Variance = outcome
		result.Guarantee = model.GuaranteeView{
			Guarantee:  *g,
			BaseAmount: after.Amount,
			Origin:     originOf(after.Orders),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &out)
	return &result, nil
}

// RunAction applies a lifecycle action to every guarantee in ids. The first
// failure aborts the whole batch and no state_changed event is published.
func (s *GuaranteeService) RunAction(
	ctx context.Context,
	ids []uuid.UUID,
	action Action,
	bankState model.GuaranteeState,
	principal model.Principal,
) ([]model.Guarantee, error) {
	if !principal.CanWrite() {
		return nil, ErrPermissionDenied
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids are required", ErrInvalidInput)
	}

	result := make([]model.Guarantee, 0, len(ids))
	var out outbox
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, id := range ids {
			g, err := s.load(ctx, id)
			if err != nil {
				return err
			}
			next, changed, err := nextState(*g, action, bankState)
			if err != nil {
				return err
			}
			if changed {
				if err := s.repo.UpdateState(ctx, g.ID, next); err != nil {
					return err
				}
				out.add(model.GuaranteeEvent{
					Type:        model.EventStateChanged,
					GuaranteeID: g.ID,
					Name:        g.Name,
					FromState:   g.State,
					ToState:     next,
				})
				g.State = next
			}
			result = append(result, *g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &out)

	s.log.Info().Str("action", string(action)).Int("count", len(result)).Msg("guarantee action applied")
	return result, nil
}

func (s *GuaranteeService) Request(ctx context.Context, ids []uuid.UUID, p model.Principal) ([]model.Guarantee, error) {
	return s.RunAction(ctx, ids, ActionRequest, "", p)
}

func (s *GuaranteeService) Activate(ctx context.Context, ids []uuid.UUID, p model.Principal) ([]model.Guarantee, error) {
	return s.RunAction(ctx, ids, ActionActivate, "", p)
}

func (s *GuaranteeService) Expire(ctx context.Context, ids []uuid.UUID, p model.Principal) ([]model.Guarantee, error) {
	return s.RunAction(ctx, ids, ActionExpire, "", p)
}

func (s *GuaranteeService) Cancel(ctx context.Context, ids []uuid.UUID, p model.Principal) ([]model.Guarantee, error) {
	return s.RunAction(ctx, ids, ActionCancel, "", p)
}

func (s *GuaranteeService) SetDraft(ctx context.Context, ids []uuid.UUID, p model.Principal) ([]model.Guarantee, error) {
	return s.RunAction(ctx, ids, ActionSetDraft, "", p)
}

func (s *GuaranteeService) SetBankState(ctx context.Context, ids []uuid.UUID, state model.GuaranteeState, p model.Principal) ([]model.Guarantee, error) {
	return s.RunAction(ctx, ids, ActionBankState, state, p)
}

func (s *GuaranteeService) Delete(ctx context.Context, ids []uuid.UUID, principal model.Principal) error {
	if !principal.CanWrite() {
		return ErrPermissionDenied
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids are required", ErrInvalidInput)
	}
	var out outbox
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, id := range ids {
			g, err := s.load(ctx, id)
			if err != nil {
				return err
			}
			if err := checkDeletable(*g); err != nil {
				return err
			}
			if err := s.repo.Delete(ctx, g.ID); err != nil {
				return err
			}
			out.add(model.GuaranteeEvent{
				Type:        model.EventDeleted,
				GuaranteeID: g.ID,
				Name:        g.Name,
				FromState:   g.State,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.flush(ctx, &out)
	return nil
}

// LinkedOrdersAction describes the sale orders counted in the guarantee's
// order base.
func (s *GuaranteeService) LinkedOrdersAction(ctx context.Context, id uuid.UUID) (*model.ActionDescriptor, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	base, err := s.base.compute(ctx, *g)
	if err != nil {
		return nil, err
	}

	states, excluded := s.base.policy.Filter.Domain()
	domain := model.OrderDomain{
		OrderIDs:      make([]uuid.UUID, 0, len(base.Orders)),
		States:        states,
		ExcludeStates: excluded,
	}
	for _, o := range base.Orders {
		domain.OrderIDs = append(domain.OrderIDs, o.ID)
	}
	actionCtx := map[string]string{"create": "false"}
	if g.CustomerID != nil {
		domain.CustomerIDs = []uuid.UUID{*g.CustomerID}
		actionCtx["default_partner_id"] = g.CustomerID.String()
	}

	return &model.ActionDescriptor{
		Name:     fmt.Sprintf("Orders of %s", g.Name),
		ResModel: "sale.order",
		ViewMode: "tree,form",
		Domain:   domain,
		Context:  actionCtx,
	}, nil
}

// MaxDocumentSize caps the signed guarantee document.
const MaxDocumentSize = 20 << 20

func (s *GuaranteeService) AttachDocument(ctx context.Context, id uuid.UUID, fileName string, content []byte, principal model.Principal) error {
	if !principal.CanWrite() {
		return ErrPermissionDenied
	}
	if len(content) == 0 {
		return fmt.Errorf("%w: document is empty", ErrInvalidInput)
	}
	if len(content) > MaxDocumentSize {
		return fmt.Errorf("%w: document exceeds %d bytes", ErrInvalidInput, MaxDocumentSize)
	}
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return fmt.Errorf("%w: document must be a PDF", ErrInvalidInput)
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		fileName = "guarantee.pdf"
	}
	return s.repo.SaveDocument(ctx, model.GuaranteeDocument{
		GuaranteeID: id,
		FileName:    fileName,
		Content:     content,
		UploadedAt:  s.now(),
	})
}

func (s *GuaranteeService) Document(ctx context.Context, id uuid.UUID) (*model.GuaranteeDocument, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// reviewOrderBase re-runs the variance review for guarantees whose order base
// moved because a linked order changed.
func (s *GuaranteeService) reviewOrderBase(ctx context.Context, g model.Guarantee, oldBase decimal.Decimal, out *outbox) (VarianceOutcome, error) {
	after, err := s.base.compute(ctx, g)
	if err != nil {
		return VarianceOutcome{}, err
	}
	var changes model.ChangeSet
	return s.reviewer.review(ctx, g, oldBase, after.Amount, changes.With(model.FieldBaseAmount), out)
}

func (s *GuaranteeService) load(ctx context.Context, id uuid.UUID) (*model.Guarantee, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: guarantee %s", ErrNotFound, id)
		}
		return nil, err
	}
	return g, nil
}

func (s *GuaranteeService) validate(ctx context.Context, g model.Guarantee) error {
	if !g.Type.Valid() {
		return fmt.Errorf("%w: unknown guarantee type %q", ErrInvalidInput, g.Type)
	}
	if g.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	if len(g.Currency) != 3 {
		return fmt.Errorf("%w: currency must be an ISO 4217 code", ErrInvalidInput)
	}
	if g.IssueDate != nil && g.DueDate != nil && g.DueDate.Before(*g.IssueDate) {
		return fmt.Errorf("%w: due date is before issue date", ErrInvalidInput)
	}
	if len(g.ContractIDs) > 0 {
		found, err := s.contracts.GetMany(ctx, g.ContractIDs)
		if err != nil {
			return err
		}
		if len(found) != len(g.ContractIDs) {
			return fmt.Errorf("%w: unknown contract in contract_ids", ErrInvalidInput)
		}
	}
	return nil
}

func (s *GuaranteeService) publish(ctx context.Context, event model.GuaranteeEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.New()
	event.OccurredAt = s.now()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("publish guarantee event failed")
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
