package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/sid-bonds/internal/model"
	"github.com/nurpe/sid-bonds/internal/service"
	"github.com/nurpe/sid-bonds/internal/testutil"
)

func upsertOrder(t *testing.T, env *testutil.Env, id uuid.UUID, name string, contract, customer uuid.UUID, amount int64) *service.UpsertOrderResult {
	t.Helper()
	res, err := env.Orders.Upsert(context.Background(), service.UpsertOrderInput{
		ID:            id,
		Name:          name,
		ContractID:    &contract,
		CustomerID:    &customer,
		State:         model.OrderStateSale,
		AmountUntaxed: decimal.NewFromInt(amount),
		DateOrder:     testutil.FixedClock,
		Principal:     testutil.User(),
	})
	require.NoError(t, err)
	return res
}

func TestOrderService_VarianceAboveThreshold(t *testing.T) {
	env := testutil.NewEnv(testutil.BondsConfig())
	creator := testutil.User()
	customer := uuid.New()
	contract := env.SeedContract("Q-001")
	env.SeedOrder("SO-001", contract.ID, customer, model.OrderStateSale, 1000, testutil.FixedClock)
	g := createGuarantee(t, env, creator, customer, 100, contract.ID)

	orderID := uuid.New()
	res := upsertOrder(t, env, orderID, "SO-002", contract.ID, customer, 50)
	outcome := res.Reviewed[g.ID]
	assert.True(t, outcome.Percent.Equal(decimal.NewFromInt(5)), outcome.Percent.String())
	assert.True(t, outcome.NotePosted)
	assert.True(t, outcome.TaskCreated)
	require.Len(t, env.Store.Notes(), 1)
	assert.Contains(t, env.Store.Notes()[0].Body, "5.00%")

	res = upsertOrder(t, env, orderID, "SO-002", contract.ID, customer, 50)
	assert.False(t, res.Reviewed[g.ID].NotePosted)
	assert.Len(t, env.Store.Notes(), 1)

	res = upsertOrder(t, env, orderID, "SO-002", contract.ID, customer, 100)
	assert.True(t, res.Reviewed[g.ID].NotePosted)
	assert.False(t, res.Reviewed[g.ID].TaskCreated)
	assert.Len(t, env.Store.Notes(), 2)
	assert.Len(t, env.Store.Tasks(), 1)
}

func TestOrderService_VarianceAtThreshold(t *testing.T) {
	env := testutil.NewEnv(testutil.BondsConfig())
	customer := uuid.New()
	contract := env.SeedContract("Q-001")
	env.SeedOrder("SO-001", contract.ID, customer, model.OrderStateSale, 1000, testutil.FixedClock)
	g := createGuarantee(t, env, testutil.User(), customer, 100, contract.ID)

	res := upsertOrder(t, env, uuid.New(), "SO-002", contract.ID, customer, 30)
	assert.True(t, res.Reviewed[g.ID].Percent.Equal(decimal.NewFromInt(3)))
	assert.False(t, res.Reviewed[g.ID].NotePosted)
	assert.Empty(t, env.Store.Notes())
}

func TestOrderService_OtherCustomerDoesNotMoveBase(t *testing.T) {
	env := testutil.NewEnv(testutil.BondsConfig())
	customer := uuid.New()
	contract := env.SeedContract("Q-001")
	env.SeedOrder("SO-001", contract.ID, customer, model.OrderStateSale, 1000, testutil.FixedClock)
	g := createGuarantee(t, env, testutil.User(), customer, 100, contract.ID)

	orderID := uuid.New()
	other := uuid.New()
	res := upsertOrder(t, env, orderID, "SO-002", contract.ID, other, 5000)
	assert.True(t, res.Reviewed[g.ID].Percent.IsZero())
	assert.False(t, res.Reviewed[g.ID].NotePosted)

	notes := env.Store.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, model.ResModelContract, notes[0].ResModel)
	assert.Equal(t, contract.ID, notes[0].ResID)
	assert.Contains(t, notes[0].Body, "2 different customers")
	assert.Zero(t, env.Store.NotesInsideTx(model.ResModelContract))

	upsertOrder(t, env, orderID, "SO-002", contract.ID, other, 6000)
	assert.Len(t, env.Store.Notes(), 1)
}

func TestOrderService_CustomerMismatchWithParent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(testutil.BondsConfig())
	user := testutil.User()
	customerA, customerB := uuid.New(), uuid.New()

	main := env.SeedContract("Q-MAIN")
	env.SeedOrder("SO-1", main.ID, customerA, model.OrderStateSale, 1000, testutil.FixedClock)
	addendum := env.SeedContract("Q-ADD")
	env.SeedOrder("SO-2", addendum.ID, customerA, model.OrderStateSale, 1000, testutil.FixedClock)
	parent := &main.ID
	_, err := env.Contracts.Update(ctx, addendum.ID, model.ContractPatch{ParentID: &parent}, user)
	require.NoError(t, err)
	createGuarantee(t, env, user, customerA, 100, addendum.ID)

	customer := customerB
	_, err = env.Orders.Upsert(ctx, service.UpsertOrderInput{
		ID:            uuid.New(),
		Name:          "SO-3",
		ContractID:    &addendum.ID,
		CustomerID:    &customer,
		State:         model.OrderStateSale,
		AmountUntaxed: decimal.NewFromInt(500),
		DateOrder:     testutil.FixedClock.AddDate(0, 0, 1),
		Principal:     user,
	})
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Empty(t, env.Events.OfType(model.EventReviewRequested))
	assert.Empty(t, env.Store.Notes())
}

func TestOrderService_MoveOutLeavesPreviousContractInconsistent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(testutil.BondsConfig())
	user := testutil.User()
	customerA, customerB := uuid.New(), uuid.New()

	main := env.SeedContract("Q-MAIN")
	env.SeedOrder("SO-1", main.ID, customerA, model.OrderStateSale, 1000, testutil.FixedClock)
	addendum := env.SeedContract("Q-ADD")
	env.SeedOrder("SO-2", addendum.ID, customerB, model.OrderStateSale, 1000, testutil.FixedClock.AddDate(0, 0, -5))
	latest := env.SeedOrder("SO-3", addendum.ID, customerA, model.OrderStateSale, 1000, testutil.FixedClock)
	parent := &main.ID
	_, err := env.Contracts.Update(ctx, addendum.ID, model.ContractPatch{ParentID: &parent}, user)
	require.NoError(t, err)

	free := env.SeedContract("Q-FREE")
	_, err = env.Orders.Upsert(ctx, service.UpsertOrderInput{
		ID:            latest.ID,
		Name:          latest.Name,
		ContractID:    &free.ID,
		CustomerID:    &customerA,
		State:         model.OrderStateSale,
		AmountUntaxed: decimal.NewFromInt(1000),
		DateOrder:     testutil.FixedClock,
		Principal:     user,
	})
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestOrderService_MoveBetweenContracts(t *testing.T) {
	env := testutil.NewEnv(testutil.BondsConfig())
	customer := uuid.New()
	from := env.SeedContract("Q-FROM")
	to := env.SeedContract("Q-TO")
	env.SeedOrder("SO-001", from.ID, customer, model.OrderStateSale, 1000, testutil.FixedClock)
	env.SeedOrder("SO-002", to.ID, customer, model.OrderStateSale, 1000, testutil.FixedClock)
	moving := env.SeedOrder("SO-003", from.ID, customer, model.OrderStateSale, 500, testutil.FixedClock)

	gFrom := createGuarantee(t, env, testutil.User(), customer, 100, from.ID)
	gTo := createGuarantee(t, env, testutil.User(), customer, 100, to.ID)

	res := upsertOrder(t, env, moving.ID, moving.Name, to.ID, customer, 500)
	require.Len(t, res.Reviewed, 2)
	assert.Len(t, env.Events.OfType(model.EventReviewRequested), 2)
	assert.Zero(t, env.Events.InsideTx())
	assert.True(t, res.Reviewed[gFrom.ID].NotePosted)
	assert.True(t, res.Reviewed[gTo.ID].NotePosted)

	view, err := env.Guarantees.Get(context.Background(), gTo.ID)
	require.NoError(t, err)
	assert.True(t, view.BaseAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "SO-002, SO-003", view.Origin)
}

func TestOrderService_Validation(t *testing.T) {
	env := testutil.NewEnv(testutil.BondsConfig())
	ctx := context.Background()

	_, err := env.Orders.Upsert(ctx, service.UpsertOrderInput{Name: "SO-1", State: model.OrderStateSale, Principal: testutil.User()})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = env.Orders.Upsert(ctx, service.UpsertOrderInput{ID: uuid.New(), Name: "SO-1", State: "paid", Principal: testutil.User()})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	missing := uuid.New()
	_, err = env.Orders.Upsert(ctx, service.UpsertOrderInput{
		ID: uuid.New(), Name: "SO-1", State: model.OrderStateSale, ContractID: &missing, Principal: testutil.User(),
	})
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = env.Orders.Upsert(ctx, service.UpsertOrderInput{ID: uuid.New(), Name: "SO-1", State: model.OrderStateSale, Principal: testutil.Reader()})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}

func TestActivityService_MarkDone(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(testutil.BondsConfig())
	user := testutil.User()
	customer := uuid.New()
	contract := env.SeedContract("Q-001")
	env.SeedOrder("SO-001", contract.ID, customer, model.OrderStateSale, 1000, testutil.FixedClock)
	g := createGuarantee(t, env, user, customer, 100)

	contracts := []uuid.UUID{contract.ID}
	_, err := env.Guarantees.Update(ctx, g.ID, model.GuaranteePatch{ContractIDs: &contracts}, user)
	require.NoError(t, err)

	open, err := env.Activities.Activities(ctx, g.ID, true)
	require.NoError(t, err)
	require.Len(t, open, 1)

	notes, err := env.Activities.Notes(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	require.NoError(t, env.Activities.MarkDone(ctx, open[0].ID, user))
	open, err = env.Activities.Activities(ctx, g.ID, true)
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.ErrorIs(t, env.Activities.MarkDone(ctx, uuid.New(), user), service.ErrNotFound)
}
