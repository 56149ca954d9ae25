package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/nurpe/sid-bonds/internal/model"
)

func TestVariancePercent(t *testing.T) {
	tests := []struct {
		name   string
		old    int64
		new    int64
		want   int64
		wantOK bool
	}{
		{name: "increase", old: 1000, new: 1050, want: 5, wantOK: true},
		{name: "decrease", old: 1000, new: 900, want: 10, wantOK: true},
		{name: "unchanged", old: 1000, new: 1000, want: 0, wantOK: true},
		{name: "from zero", old: 0, new: 10, want: 100, wantOK: true},
		{name: "both zero", old: 0, new: 0, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct, ok := VariancePercent(decimal.NewFromInt(tt.old), decimal.NewFromInt(tt.new))
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.True(t, pct.Equal(decimal.NewFromInt(tt.want)), pct.String())
			}
		})
	}
}

func TestVarianceExempt(t *testing.T) {
	for _, state := range []model.GuaranteeState{
		model.GuaranteeStateExpired,
		model.GuaranteeStateCancelled,
		model.GuaranteeStateSolicitDev,
		model.GuaranteeStateRecovered,
		model.GuaranteeStateSolicitCan,
	} {
		assert.True(t, varianceExempt(state), state)
	}
	for _, state := range []model.GuaranteeState{
		model.GuaranteeStateDraft,
		model.GuaranteeStateActive,
		model.GuaranteeStatePendingBank,
		model.GuaranteeStateReceipt,
	} {
		assert.False(t, varianceExempt(state), state)
	}
}
