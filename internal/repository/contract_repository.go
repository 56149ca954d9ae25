package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/db"
	"github.com/nurpe/sid-bonds/internal/model"
)

const contractColumns = `
	id,
	name,
	parent_id,
	parent_path,
	amount_untaxed,
	amount_total,
	created_at,
	updated_at
`

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) Create(ctx context.Context, c model.Contract) (*model.Contract, error) {
	var saved model.Contract
	err := db.Conn(ctx, r.db).Raw(`
		INSERT INTO sale_contract (name, amount_untaxed, amount_total)
		VALUES (?, ?, ?)
		RETURNING `+contractColumns,
		c.Name, c.AmountUntaxed, c.AmountTotal,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *ContractRepository) Get(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var c model.Contract
	if err := db.Conn(ctx, r.db).Raw(`
		SELECT `+contractColumns+`
		FROM sale_contract
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *ContractRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]model.Contract, error) {
	if len(ids) == 0 {
		return []model.Contract{}, nil
	}
	var items []model.Contract
	if err := db.Conn(ctx, r.db).Raw(`
		SELECT `+contractColumns+`
		FROM sale_contract
		WHERE id IN ?
		ORDER BY name ASC
	`, ids).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ContractRepository) Update(ctx context.Context, c model.Contract) error {
	res := db.Conn(ctx, r.db).Exec(`
		UPDATE sale_contract
		SET name = ?, amount_untaxed = ?, amount_total = ?, updated_at = NOW()
		WHERE id = ?
	`, c.Name, c.AmountUntaxed, c.AmountTotal, c.ID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContractRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.Contract, error) {
	var items []model.Contract
	if err := db.Conn(ctx, r.db).Raw(`
		SELECT `+contractColumns+`
		FROM sale_contract
		WHERE parent_id = ?
		ORDER BY name ASC
	`, parentID).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ContractRepository) SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID, parentPath string) error {
	return db.Conn(ctx, r.db).Exec(`
		UPDATE sale_contract
		SET parent_id = ?, parent_path = ?, updated_at = NOW()
		WHERE id = ?
	`, parentID, parentPath, id).Error
}

func (r *ContractRepository) Counts(
	ctx context.Context,
	id uuid.UUID,
	confirmedStates []model.OrderState,
	excludedStates []model.OrderState,
) (model.ContractCounts, error) {
	orderFilter, args := orderStateFilter("so.state", confirmedStates, excludedStates)

	query := fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM sale_contract c WHERE c.parent_id = ?) AS children,
			(SELECT COUNT(*) FROM sale_order so WHERE so.contract_id = ? %s) AS orders,
			(SELECT COUNT(*) FROM bond_contract bc WHERE bc.contract_id = ?) AS guarantees,
			(SELECT COUNT(*) FROM purchase_order po WHERE po.contract_id = ?) AS purchases
	`, orderFilter)
	allArgs := []interface{}{id, id}
	allArgs = append(allArgs, args...)
	allArgs = append(allArgs, id, id)

	var counts model.ContractCounts
	if err := db.Conn(ctx, r.db).Raw(query, allArgs...).Scan(&counts).Error; err != nil {
		return model.ContractCounts{}, err
	}
	return counts, nil
}

func orderStateFilter(column string, states, excluded []model.OrderState) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, state)
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
	}
	if len(excluded) > 0 {
		placeholders := make([]string, len(excluded))
		for i, state := range excluded {
			placeholders[i] = "?"
			args = append(args, state)
		}
		clauses = append(clauses, fmt.Sprintf("%s NOT IN (%s)", column, strings.Join(placeholders, ",")))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "AND " + strings.Join(clauses, " AND "), args
}
