package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/model"
)

type ActivityService struct {
	store ActivityStore
	bonds *GuaranteeService
}

func NewActivityService(store ActivityStore, bonds *GuaranteeService) *ActivityService {
	return &ActivityService{store: store, bonds: bonds}
}

func (s *ActivityService) Notes(ctx context.Context, guaranteeID uuid.UUID) ([]model.Note, error) {
	if _, err := s.bonds.load(ctx, guaranteeID); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, model.Target{Model: model.ResModelGuarantee, ID: guaranteeID})
}

func (s *ActivityService) Activities(ctx context.Context, guaranteeID uuid.UUID, openOnly bool) ([]model.Activity, error) {
	if _, err := s.bonds.load(ctx, guaranteeID); err != nil {
		return nil, err
	}
	return s.store.ListActivities(ctx, model.Target{Model: model.ResModelGuarantee, ID: guaranteeID}, openOnly)
}

func (s *ActivityService) MarkDone(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	if !principal.CanWrite() {
		return ErrPermissionDenied
	}
	if err := s.store.MarkDone(ctx, id, s.bonds.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: activity %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}
