package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/sid-bonds/internal/model"
)

func TestNextState(t *testing.T) {
	positive := decimal.NewFromInt(100)

	tests := []struct {
		name      string
		state     model.GuaranteeState
		amount    decimal.Decimal
		action    Action
		bankState model.GuaranteeState
		want      model.GuaranteeState
		changed   bool
		wantErr   error
	}{
		{name: "request from draft", state: model.GuaranteeStateDraft, action: ActionRequest, want: model.GuaranteeStateRequested, changed: true},
		{name: "request from active", state: model.GuaranteeStateActive, action: ActionRequest, wantErr: ErrInvalidState},
		{name: "activate requested", state: model.GuaranteeStateRequested, amount: positive, action: ActionActivate, want: model.GuaranteeStateActive, changed: true},
		{name: "activate draft", state: model.GuaranteeStateDraft, amount: positive, action: ActionActivate, want: model.GuaranteeStateActive, changed: true},
		{name: "activate without amount", state: model.GuaranteeStateDraft, amount: decimal.Zero, action: ActionActivate, wantErr: ErrValidation},
		{name: "activate cancelled", state: model.GuaranteeStateCancelled, amount: positive, action: ActionActivate, wantErr: ErrInvalidState},
		{name: "expire active", state: model.GuaranteeStateActive, action: ActionExpire, want: model.GuaranteeStateExpired, changed: true},
		{name: "expire draft", state: model.GuaranteeStateDraft, action: ActionExpire, wantErr: ErrInvalidState},
		{name: "cancel active", state: model.GuaranteeStateActive, action: ActionCancel, want: model.GuaranteeStateCancelled, changed: true},
		{name: "cancel bank state", state: model.GuaranteeStateSent, action: ActionCancel, want: model.GuaranteeStateCancelled, changed: true},
		{name: "cancel expired is a no-op", state: model.GuaranteeStateExpired, action: ActionCancel, want: model.GuaranteeStateExpired},
		{name: "cancel cancelled is a no-op", state: model.GuaranteeStateCancelled, action: ActionCancel, want: model.GuaranteeStateCancelled},
		{name: "draft from cancelled", state: model.GuaranteeStateCancelled, action: ActionSetDraft, want: model.GuaranteeStateDraft, changed: true},
		{name: "draft from draft", state: model.GuaranteeStateDraft, action: ActionSetDraft, want: model.GuaranteeStateDraft},
		{name: "bank state", state: model.GuaranteeStateActive, action: ActionBankState, bankState: model.GuaranteeStateSolicitDev, want: model.GuaranteeStateSolicitDev, changed: true},
		{name: "bank state rejects lifecycle state", state: model.GuaranteeStateActive, action: ActionBankState, bankState: model.GuaranteeStateDraft, wantErr: ErrInvalidInput},
		{name: "unknown action", state: model.GuaranteeStateDraft, action: Action("archive"), wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := model.Guarantee{Name: "AVAL/00001", State: tt.state, Amount: tt.amount}
			next, changed, err := nextState(g, tt.action, tt.bankState)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestCheckDeletable(t *testing.T) {
	for _, state := range []model.GuaranteeState{model.GuaranteeStateActive, model.GuaranteeStateExpired} {
		err := checkDeletable(model.Guarantee{Name: "AVAL/00001", State: state})
		assert.ErrorIs(t, err, ErrDeleteForbidden, state)
	}
	for _, state := range []model.GuaranteeState{
		model.GuaranteeStateDraft,
		model.GuaranteeStateRequested,
		model.GuaranteeStateCancelled,
		model.GuaranteeStateSent,
	} {
		assert.NoError(t, checkDeletable(model.Guarantee{State: state}), state)
	}
}
