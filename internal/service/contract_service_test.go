package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/sid-bonds/internal/model"
	"github.com/nurpe/sid-bonds/internal/service"
	"github.com/nurpe/sid-bonds/internal/testutil"
)

func TestContractService_Hierarchy(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(testutil.BondsConfig())
	user := testutil.User()
	customerA, customerB := uuid.New(), uuid.New()

	main := env.SeedContract("Q-MAIN")
	env.SeedOrder("SO-1", main.ID, customerA, model.OrderStateSale, 100, testutil.FixedClock)
	addendum := env.SeedContract("Q-ADD")
	env.SeedOrder("SO-2", addendum.ID, customerA, model.OrderStateSale, 100, testutil.FixedClock)
	foreign := env.SeedContract("Q-FOREIGN")
	env.SeedOrder("SO-3", foreign.ID, customerB, model.OrderStateSale, 100, testutil.FixedClock)

	t.Run("attach addendum of the same customer", func(t *testing.T) {
		parent := &main.ID
		view, err := env.Contracts.Update(ctx, addendum.ID, model.ContractPatch{ParentID: &parent}, user)
		require.NoError(t, err)
		require.NotNil(t, view.ParentID)
		assert.Equal(t, main.ID, *view.ParentID)
		assert.Equal(t, main.ID.String()+"/"+addendum.ID.String()+"/", view.ParentPath)

		mainView, err := env.Contracts.Get(ctx, main.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{addendum.ID}, mainView.ChildIDs)
		assert.EqualValues(t, 1, mainView.Counts.Children)
		assert.EqualValues(t, 1, mainView.Counts.Orders)
	})

	t.Run("reject parent of a different customer", func(t *testing.T) {
		parent := &main.ID
		_, err := env.Contracts.Update(ctx, foreign.ID, model.ContractPatch{ParentID: &parent}, user)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("reject addendum as parent", func(t *testing.T) {
		other := env.SeedContract("Q-OTHER")
		parent := &addendum.ID
		_, err := env.Contracts.Update(ctx, other.ID, model.ContractPatch{ParentID: &parent}, user)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("reject main contract with addenda as addendum", func(t *testing.T) {
		other := env.SeedContract("Q-TOP")
		children := []uuid.UUID{main.ID}
		_, err := env.Contracts.Update(ctx, other.ID, model.ContractPatch{ChildIDs: &children}, user)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("reject self parent", func(t *testing.T) {
		parent := &main.ID
		_, err := env.Contracts.Update(ctx, main.ID, model.ContractPatch{ParentID: &parent}, user)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("reject parent and addenda together", func(t *testing.T) {
		free := env.SeedContract("Q-FREE")
		_, err := env.Contracts.Create(ctx, service.CreateContractInput{
			Name:      "Q-BOTH",
			ParentID:  &main.ID,
			ChildIDs:  []uuid.UUID{free.ID},
			Principal: user,
		})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("detach addenda", func(t *testing.T) {
		children := []uuid.UUID{}
		view, err := env.Contracts.Update(ctx, main.ID, model.ContractPatch{ChildIDs: &children}, user)
		require.NoError(t, err)
		assert.Empty(t, view.ChildIDs)

		detached, err := env.Contracts.Get(ctx, addendum.ID)
		require.NoError(t, err)
		assert.Nil(t, detached.ParentID)
		assert.Equal(t, addendum.ID.String()+"/", detached.ParentPath)
	})
}

func TestContractService_CreateWithAddenda(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(testutil.BondsConfig())
	user := testutil.User()
	child := env.SeedContract("Q-CHILD")

	view, err := env.Contracts.Create(ctx, service.CreateContractInput{
		Name:      "Q-PARENT",
		ChildIDs:  []uuid.UUID{child.ID},
		Principal: user,
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{child.ID}, view.ChildIDs)
	assert.Equal(t, view.ID.String()+"/", view.ParentPath)

	_, err = env.Contracts.Create(ctx, service.CreateContractInput{Name: " ", Principal: user})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestContractService_EffectiveCustomer(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(testutil.BondsConfig())
	user := testutil.User()
	older, newer := uuid.New(), uuid.New()

	contract := env.SeedContract("Q-001")
	customer, err := env.Contracts.EffectiveCustomer(ctx, contract.ID)
	require.NoError(t, err)
	assert.Nil(t, customer)

	env.SeedOrder("SO-1", contract.ID, older, model.OrderStateSale, 100, testutil.FixedClock.AddDate(0, 0, -10))
	env.SeedOrder("SO-2", contract.ID, newer, model.OrderStateSale, 100, testutil.FixedClock)

	customer, err = env.Contracts.EffectiveCustomer(ctx, contract.ID)
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, newer, *customer)

	name := "Q-001 renamed"
	_, err = env.Contracts.Update(ctx, contract.ID, model.ContractPatch{Name: &name}, user)
	require.NoError(t, err)

	notes := env.Store.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, model.ResModelContract, notes[0].ResModel)
	assert.Equal(t, contract.ID, notes[0].ResID)
	assert.Zero(t, env.Store.NotesInsideTx(model.ResModelContract))

	action, err := env.Contracts.OrdersAction(ctx, contract.ID)
	require.NoError(t, err)
	assert.Len(t, action.Domain.OrderIDs, 2)
	assert.Equal(t, newer.String(), action.Context["default_partner_id"])
}

func TestContractService_NotFound(t *testing.T) {
	env := testutil.NewEnv(testutil.BondsConfig())
	_, err := env.Contracts.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}
