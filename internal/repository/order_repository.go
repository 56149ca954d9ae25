package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/db"
	"github.com/nurpe/sid-bonds/internal/model"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*model.SaleOrder, error) {
	var o model.SaleOrder
	if err := db.Conn(ctx, r.db).Raw(`
		SELECT id, name, contract_id, customer_id, state, amount_untaxed, date_order, updated_at
		FROM sale_order
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&o).Error; err != nil {
		return nil, err
	}
	if o.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *OrderRepository) Upsert(ctx context.Context, o model.SaleOrder) (*model.SaleOrder, error) {
	var saved model.SaleOrder
	err := db.Conn(ctx, r.db).Raw(`
		INSERT INTO sale_order (id, name, contract_id, customer_id, state, amount_untaxed, date_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			contract_id = EXCLUDED.contract_id,
			customer_id = EXCLUDED.customer_id,
			state = EXCLUDED.state,
			amount_untaxed = EXCLUDED.amount_untaxed,
			date_order = EXCLUDED.date_order,
			updated_at = NOW()
		RETURNING id, name, contract_id, customer_id, state, amount_untaxed, date_order, updated_at
	`, o.ID, o.Name, o.ContractID, o.CustomerID, o.State, o.AmountUntaxed, o.DateOrder).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *OrderRepository) ListByContracts(ctx context.Context, contractIDs []uuid.UUID) ([]model.SaleOrder, error) {
	if len(contractIDs) == 0 {
		return []model.SaleOrder{}, nil
	}
	var orders []model.SaleOrder
	if err := db.Conn(ctx, r.db).Raw(`
		SELECT id, name, contract_id, customer_id, state, amount_untaxed, date_order, updated_at
		FROM sale_order
		WHERE contract_id IN ?
		ORDER BY date_order DESC, name DESC
	`, contractIDs).Scan(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
