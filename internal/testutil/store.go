// Package testutil provides in-memory implementations of the service ports
// for unit and handler tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/model"
	"github.com/nurpe/sid-bonds/internal/service"
)

// Store backs every fake repository with shared maps so that guarantees,
// contracts and orders see each other the way the database tables do.
type Store struct {
	mu         sync.Mutex
	guarantees map[uuid.UUID]model.Guarantee
	documents  map[uuid.UUID]model.GuaranteeDocument
	contracts  map[uuid.UUID]model.Contract
	orders     map[uuid.UUID]model.SaleOrder
	notes      []model.Note
	activities []model.Activity
	groups     map[string][]uuid.UUID
	sequences  map[string]int

	tx            *Tx
	notesInsideTx map[model.ResModel]int
}

func NewStore() *Store {
	return &Store{
		guarantees: make(map[uuid.UUID]model.Guarantee),
		documents:  make(map[uuid.UUID]model.GuaranteeDocument),
		contracts:  make(map[uuid.UUID]model.Contract),
		orders:     make(map[uuid.UUID]model.SaleOrder),
		groups:     make(map[string][]uuid.UUID),
		sequences:  make(map[string]int),

		notesInsideTx: make(map[model.ResModel]int),
	}
}

func (s *Store) Guarantees() *GuaranteeRepo { return &GuaranteeRepo{s: s} }
func (s *Store) Contracts() *ContractRepo   { return &ContractRepo{s: s} }
func (s *Store) Orders() *OrderRepo         { return &OrderRepo{s: s} }
func (s *Store) Activities() *ActivityRepo  { return &ActivityRepo{s: s} }
func (s *Store) Groups() *GroupRepo         { return &GroupRepo{s: s} }
func (s *Store) Sequence() *Sequence        { return &Sequence{s: s, Prefix: "AVAL/"} }

// AddGroupMember registers partnerID as a member of groupCode.
func (s *Store) AddGroupMember(groupCode string, partnerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupCode] = append(s.groups[groupCode], partnerID)
}

// Notes returns every posted note in posting order.
func (s *Store) Notes() []model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Note(nil), s.notes...)
}

// NotesInsideTx counts the notes on resModel posted while a transaction was
// still open.
func (s *Store) NotesInsideTx(resModel model.ResModel) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notesInsideTx[resModel]
}

// Tasks returns every scheduled activity in creation order.
func (s *Store) Tasks() []model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Activity(nil), s.activities...)
}

type GuaranteeRepo struct{ s *Store }

func (r *GuaranteeRepo) Create(_ context.Context, g model.Guarantee) (*model.Guarantee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	g.ContractIDs = append([]uuid.UUID(nil), g.ContractIDs...)
	r.s.guarantees[g.ID] = g
	return r.s.guaranteeLocked(g.ID), nil
}

func (r *GuaranteeRepo) Get(_ context.Context, id uuid.UUID) (*model.Guarantee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.guarantees[id]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.s.guaranteeLocked(id), nil
}

func (r *GuaranteeRepo) List(_ context.Context, filter model.GuaranteeFilter) ([]model.Guarantee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Guarantee
	for id, g := range r.s.guarantees {
		if len(filter.States) > 0 && !containsState(filter.States, g.State) {
			continue
		}
		if filter.CustomerID != nil && (g.CustomerID == nil || *g.CustomerID != *filter.CustomerID) {
			continue
		}
		if filter.ContractID != nil && !containsID(g.ContractIDs, *filter.ContractID) {
			continue
		}
		if filter.DueBefore != nil && (g.DueDate == nil || !g.DueDate.Before(*filter.DueBefore)) {
			continue
		}
		result = append(result, *r.s.guaranteeLocked(id))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *GuaranteeRepo) Update(_ context.Context, g model.Guarantee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.guarantees[g.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	g.State = current.State
	g.CreatedAt = current.CreatedAt
	g.CreatedBy = current.CreatedBy
	g.UpdatedAt = time.Now()
	g.ContractIDs = append([]uuid.UUID(nil), g.ContractIDs...)
	r.s.guarantees[g.ID] = g
	return nil
}

func (r *GuaranteeRepo) UpdateState(_ context.Context, id uuid.UUID, state model.GuaranteeState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.guarantees[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	g.State = state
	r.s.guarantees[id] = g
	return nil
}

func (r *GuaranteeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.guarantees[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.guarantees, id)
	delete(r.s.documents, id)
	return nil
}

func (r *GuaranteeRepo) ListIDsByContracts(_ context.Context, contractIDs []uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for id, g := range r.s.guarantees {
		for _, contractID := range contractIDs {
			if containsID(g.ContractIDs, contractID) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *GuaranteeRepo) SaveDocument(_ context.Context, doc model.GuaranteeDocument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.documents[doc.GuaranteeID] = doc
	return nil
}

func (r *GuaranteeRepo) GetDocument(_ context.Context, guaranteeID uuid.UUID) (*model.GuaranteeDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	doc, ok := r.s.documents[guaranteeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &doc, nil
}

func (s *Store) guaranteeLocked(id uuid.UUID) *model.Guarantee {
	g := s.guarantees[id]
	g.ContractIDs = append([]uuid.UUID(nil), g.ContractIDs...)
	_, g.HasDocument = s.documents[id]
	return &g
}

type ContractRepo struct{ s *Store }

func (r *ContractRepo) Create(_ context.Context, c model.Contract) (*model.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.contracts[c.ID] = c
	return &c, nil
}

func (r *ContractRepo) Get(_ context.Context, id uuid.UUID) (*model.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *ContractRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]model.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Contract
	for _, id := range ids {
		if c, ok := r.s.contracts[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (r *ContractRepo) Update(_ context.Context, c model.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.contracts[c.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	current.Name = c.Name
	current.AmountUntaxed = c.AmountUntaxed
	current.AmountTotal = c.AmountTotal
	current.UpdatedAt = time.Now()
	r.s.contracts[c.ID] = current
	return nil
}

func (r *ContractRepo) ListChildren(_ context.Context, parentID uuid.UUID) ([]model.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Contract
	for _, c := range r.s.contracts {
		if c.ParentID != nil && *c.ParentID == parentID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *ContractRepo) SetParent(_ context.Context, id uuid.UUID, parentID *uuid.UUID, parentPath string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.ParentID = parentID
	c.ParentPath = parentPath
	r.s.contracts[id] = c
	return nil
}

func (r *ContractRepo) Counts(_ context.Context, id uuid.UUID, confirmed, excluded []model.OrderState) (model.ContractCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var counts model.ContractCounts
	for _, c := range r.s.contracts {
		if c.ParentID != nil && *c.ParentID == id {
			counts.Children++
		}
	}
	for _, o := range r.s.orders {
		if o.ContractID == nil || *o.ContractID != id {
			continue
		}
		if len(confirmed) > 0 && !containsOrderState(confirmed, o.State) {
			continue
		}
		if containsOrderState(excluded, o.State) {
			continue
		}
		counts.Orders++
	}
	for _, g := range r.s.guarantees {
		if containsID(g.ContractIDs, id) {
			counts.Guarantees++
		}
	}
	return counts, nil
}

type OrderRepo struct{ s *Store }

func (r *OrderRepo) Get(_ context.Context, id uuid.UUID) (*model.SaleOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *OrderRepo) Upsert(_ context.Context, o model.SaleOrder) (*model.SaleOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.UpdatedAt = time.Now()
	r.s.orders[o.ID] = o
	return &o, nil
}

func (r *OrderRepo) ListByContracts(_ context.Context, contractIDs []uuid.UUID) ([]model.SaleOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.SaleOrder
	for _, o := range r.s.orders {
		if o.ContractID != nil && containsID(contractIDs, *o.ContractID) {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ActivityRepo implements service.Notifier and service.ActivityStore.
type ActivityRepo struct{ s *Store }

func (r *ActivityRepo) PostNote(_ context.Context, target model.Target, body string, mentions []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.tx != nil && r.s.tx.Open() {
		r.s.notesInsideTx[target.Model]++
	}
	r.s.notes = append(r.s.notes, model.Note{
		ID:        uuid.New(),
		ResModel:  target.Model,
		ResID:     target.ID,
		Body:      body,
		Mentions:  append([]uuid.UUID(nil), mentions...),
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *ActivityRepo) ScheduleTask(_ context.Context, req service.TaskRequest) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.activities {
		if a.Done {
			continue
		}
		if a.ResModel == req.Target.Model && a.ResID == req.Target.ID &&
			a.AssigneeID == req.AssigneeID && a.ActivityType == req.ActivityType && a.Summary == req.Summary {
			return false, nil
		}
	}
	r.s.activities = append(r.s.activities, model.Activity{
		ID:           uuid.New(),
		ResModel:     req.Target.Model,
		ResID:        req.Target.ID,
		AssigneeID:   req.AssigneeID,
		ActivityType: req.ActivityType,
		Summary:      req.Summary,
		Note:         req.Note,
		DueDate:      req.DueDate,
		CreatedAt:    time.Now(),
	})
	return true, nil
}

func (r *ActivityRepo) ListNotes(_ context.Context, target model.Target) ([]model.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Note
	for _, n := range r.s.notes {
		if n.ResModel == target.Model && n.ResID == target.ID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r *ActivityRepo) ListActivities(_ context.Context, target model.Target, openOnly bool) ([]model.Activity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Activity
	for _, a := range r.s.activities {
		if a.ResModel != target.Model || a.ResID != target.ID {
			continue
		}
		if openOnly && a.Done {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (r *ActivityRepo) MarkDone(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, a := range r.s.activities {
		if a.ID == id {
			doneAt := at
			r.s.activities[i].Done = true
			r.s.activities[i].DoneAt = &doneAt
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type GroupRepo struct{ s *Store }

func (r *GroupRepo) PartnerIDs(_ context.Context, groupCode string) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]uuid.UUID(nil), r.s.groups[groupCode]...), nil
}

type Sequence struct {
	s      *Store
	Prefix string
}

func (q *Sequence) Next(_ context.Context, code string) (string, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.sequences[code]++
	return fmtSequence(q.Prefix, q.s.sequences[code]), nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, item := range ids {
		if item == id {
			return true
		}
	}
	return false
}

func containsState(states []model.GuaranteeState, state model.GuaranteeState) bool {
	for _, item := range states {
		if item == state {
			return true
		}
	}
	return false
}

func containsOrderState(states []model.OrderState, state model.OrderState) bool {
	for _, item := range states {
		if item == state {
			return true
		}
	}
	return false
}
