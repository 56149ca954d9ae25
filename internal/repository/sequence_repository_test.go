package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nurpe/sid-bonds/internal/model"
)

func TestFormatSequence(t *testing.T) {
	assert.Equal(t, "AVAL/00042", formatSequence("AVAL/", 5, 42))
	assert.Equal(t, "AVAL/123456", formatSequence("AVAL/", 5, 123456))
	assert.Equal(t, "7", formatSequence("", 0, 7))
}

func TestOrderStateFilter(t *testing.T) {
	clause, args := orderStateFilter("so.state", []model.OrderState{model.OrderStateSale}, nil)
	assert.Equal(t, "AND so.state IN (?)", clause)
	assert.Equal(t, []interface{}{model.OrderStateSale}, args)

	clause, args = orderStateFilter("so.state", nil, []model.OrderState{model.OrderStateCancel})
	assert.Equal(t, "AND so.state NOT IN (?)", clause)
	assert.Equal(t, []interface{}{model.OrderStateCancel}, args)

	clause, args = orderStateFilter("so.state", nil, nil)
	assert.Empty(t, clause)
	assert.Nil(t, args)
}
