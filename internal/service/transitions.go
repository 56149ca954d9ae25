package service

import (
	"fmt"

	"github.com/nurpe/sid-bonds/internal/model"
)

type Action string

const (
	ActionRequest   Action = "request"
	ActionActivate  Action = "activate"
	ActionExpire    Action = "expire"
	ActionCancel    Action = "cancel"
	ActionSetDraft  Action = "draft"
	ActionBankState Action = "bank_state"
)

// nextState returns the state an action moves g into. changed is false when
// the action leaves g untouched.
func nextState(g model.Guarantee, action Action, bankState model.GuaranteeState) (next model.GuaranteeState, changed bool, err error) {
	switch action {
	case ActionRequest:
		if g.State != model.GuaranteeStateDraft {
			return "", false, fmt.Errorf("%w: only draft guarantees can be requested (%s is %s)", ErrInvalidState, g.Name, g.State)
		}
		return model.GuaranteeStateRequested, true, nil

	case ActionActivate:
		if g.State != model.GuaranteeStateRequested && g.State != model.GuaranteeStateDraft {
			return "", false, fmt.Errorf("%w: only draft or requested guarantees can be activated (%s is %s)", ErrInvalidState, g.Name, g.State)
		}
		if !g.Amount.IsPositive() {
			return "", false, fmt.Errorf("%w: the amount of %s must be positive before activation", ErrValidation, g.Name)
		}
		return model.GuaranteeStateActive, true, nil

	case ActionExpire:
		if g.State != model.GuaranteeStateActive {
			return "", false, fmt.Errorf("%w: only active guarantees can expire (%s is %s)", ErrInvalidState, g.Name, g.State)
		}
		return model.GuaranteeStateExpired, true, nil

	case ActionCancel:
		if g.State == model.GuaranteeStateExpired || g.State == model.GuaranteeStateCancelled {
			return g.State, false, nil
		}
		return model.GuaranteeStateCancelled, true, nil

	case ActionSetDraft:
		return model.GuaranteeStateDraft, g.State != model.GuaranteeStateDraft, nil

	case ActionBankState:
		if !bankState.IsBankState() {
			return "", false, fmt.Errorf("%w: %q is not a bank workflow state", ErrInvalidInput, bankState)
		}
		return bankState, g.State != bankState, nil
	}
	return "", false, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
}

func checkDeletable(g model.Guarantee) error {
	if g.State == model.GuaranteeStateActive || g.State == model.GuaranteeStateExpired {
		return fmt.Errorf("%w: guarantee %s is %s and cannot be deleted", ErrDeleteForbidden, g.Name, g.State)
	}
	return nil
}
