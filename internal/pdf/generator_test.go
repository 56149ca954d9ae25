package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/sid-bonds/internal/model"
)

func TestGenerator_Generate(t *testing.T) {
	due := time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC)
	contractID := uuid.New()
	summary := model.GuaranteeSummary{
		Guarantee: model.GuaranteeView{
			Guarantee: model.Guarantee{
				ID:          uuid.New(),
				Name:        "AVAL/00007",
				Currency:    "EUR",
				Amount:      decimal.NewFromInt(500),
				DueDate:     &due,
				Type:        model.GuaranteeTypeCompliance,
				State:       model.GuaranteeStateActive,
				Description: "Garantía de cumplimiento del contrato",
			},
			BaseAmount: decimal.NewFromInt(1050),
			Origin:     "S00012, S00013",
		},
		Contracts: []model.Contract{{ID: contractID, Name: "Q-0001", AmountUntaxed: decimal.NewFromInt(1000)}},
		Orders: []model.SaleOrder{{
			ID:            uuid.New(),
			Name:          "S00012",
			ContractID:    &contractID,
			State:         model.OrderStateSale,
			AmountUntaxed: decimal.NewFromInt(1050),
			DateOrder:     due,
		}},
		GeneratedAt: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
	}

	content, err := NewGenerator().Generate(summary)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "-", formatDate(nil))
	d := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "02.01.2026", formatDate(&d))
}
