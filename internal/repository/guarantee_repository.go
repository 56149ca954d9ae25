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

const guaranteeColumns = `
	b.id,
	b.name,
	b.external_ref,
	b.customer_id,
	b.journal_id,
	b.currency,
	b.amount,
	b.issue_date,
	b.due_date,
	b.digital,
	b.reviewed,
	b.description,
	b.type,
	b.state,
	EXISTS (SELECT 1 FROM bond_document d WHERE d.guarantee_id = b.id) AS has_document,
	b.created_by,
	b.created_at,
	b.updated_at
`

type GuaranteeRepository struct {
	db *gorm.DB
}

func NewGuaranteeRepository(db *gorm.DB) *GuaranteeRepository {
	return &GuaranteeRepository{db: db}
}

func (r *GuaranteeRepository) Create(ctx context.Context, g model.Guarantee) (*model.Guarantee, error) {
	conn := db.Conn(ctx, r.db)

	var saved model.Guarantee
	err := conn.Raw(`
		INSERT INTO bond_order (
			name,
			external_ref,
			customer_id,
			journal_id,
			currency,
			amount,
			issue_date,
			due_date,
			digital,
			reviewed,
			description,
			type,
			state,
			created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING
			id,
			name,
			external_ref,
			customer_id,
			journal_id,
			currency,
			amount,
			issue_date,
			due_date,
			digital,
			reviewed,
			description,
			type,
			state,
			created_by,
			created_at,
			updated_at
	`,
		g.Name,
		g.ExternalRef,
		g.CustomerID,
		g.JournalID,
		g.Currency,
		g.Amount,
		g.IssueDate,
		g.DueDate,
		g.Digital,
		g.Reviewed,
		g.Description,
		g.Type,
		g.State,
		g.CreatedBy,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}

	if err := r.replaceContracts(conn, saved.ID, g.ContractIDs); err != nil {
		return nil, err
	}
	saved.ContractIDs = g.ContractIDs
	return &saved, nil
}

func (r *GuaranteeRepository) Get(ctx context.Context, id uuid.UUID) (*model.Guarantee, error) {
	conn := db.Conn(ctx, r.db)

	var g model.Guarantee
	if err := conn.Raw(`SELECT `+guaranteeColumns+` FROM bond_order b WHERE b.id = ? LIMIT 1`, id).
		Scan(&g).Error; err != nil {
		return nil, err
	}
	if g.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	links, err := r.contractLinks(conn, []uuid.UUID{g.ID})
	if err != nil {
		return nil, err
	}
	g.ContractIDs = links[g.ID]
	return &g, nil
}

func (r *GuaranteeRepository) List(ctx context.Context, filter model.GuaranteeFilter) ([]model.Guarantee, error) {
	conn := db.Conn(ctx, r.db)

	baseQuery := `SELECT ` + guaranteeColumns + ` FROM bond_order b WHERE 1 = 1`
	var args []interface{}
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			placeholders[i] = "?"
			args = append(args, state)
		}
		baseQuery += fmt.Sprintf(" AND b.state IN (%s)", strings.Join(placeholders, ","))
	}
	if filter.CustomerID != nil {
		baseQuery += " AND b.customer_id = ?"
		args = append(args, *filter.CustomerID)
	}
	if filter.ContractID != nil {
		baseQuery += " AND EXISTS (SELECT 1 FROM bond_contract bc WHERE bc.bond_id = b.id AND bc.contract_id = ?)"
		args = append(args, *filter.ContractID)
	}
	if filter.DueBefore != nil {
		baseQuery += " AND b.due_date IS NOT NULL AND b.due_date < ?"
		args = append(args, *filter.DueBefore)
	}
	baseQuery += " ORDER BY b.created_at DESC, b.name ASC"

	var items []model.Guarantee
	if err := conn.Raw(baseQuery, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]uuid.UUID, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	links, err := r.contractLinks(conn, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].ContractIDs = links[items[i].ID]
	}
	return items, nil
}

func (r *GuaranteeRepository) Update(ctx context.Context, g model.Guarantee) error {
	conn := db.Conn(ctx, r.db)

	res := conn.Exec(`
		UPDATE bond_order
		SET
			external_ref = ?,
			customer_id = ?,
			journal_id = ?,
			currency = ?,
			amount = ?,
			issue_date = ?,
			due_date = ?,
			digital = ?,
			reviewed = ?,
			description = ?,
			type = ?,
			updated_at = NOW()
		WHERE id = ?
	`,
		g.ExternalRef,
		g.CustomerID,
		g.JournalID,
		g.Currency,
		g.Amount,
		g.IssueDate,
		g.DueDate,
		g.Digital,
		g.Reviewed,
		g.Description,
		g.Type,
		g.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return r.replaceContracts(conn, g.ID, g.ContractIDs)
}

func (r *GuaranteeRepository) UpdateState(ctx context.Context, id uuid.UUID, state model.GuaranteeState) error {
	res := db.Conn(ctx, r.db).Exec(`
		UPDATE bond_order SET state = ?, updated_at = NOW() WHERE id = ?
	`, state, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GuaranteeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := db.Conn(ctx, r.db).Exec(`DELETE FROM bond_order WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GuaranteeRepository) ListIDsByContracts(ctx context.Context, contractIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(contractIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	var ids []uuid.UUID
	err := db.Conn(ctx, r.db).Raw(`
		SELECT DISTINCT bond_id
		FROM bond_contract
		WHERE contract_id IN ?
		ORDER BY bond_id
	`, contractIDs).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GuaranteeRepository) SaveDocument(ctx context.Context, doc model.GuaranteeDocument) error {
	return db.Conn(ctx, r.db).Exec(`
		INSERT INTO bond_document (guarantee_id, file_name, content, uploaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (guarantee_id) DO UPDATE
		SET file_name = EXCLUDED.file_name,
			content = EXCLUDED.content,
			uploaded_at = EXCLUDED.uploaded_at
	`, doc.GuaranteeID, doc.FileName, doc.Content, doc.UploadedAt).Error
}

func (r *GuaranteeRepository) GetDocument(ctx context.Context, guaranteeID uuid.UUID) (*model.GuaranteeDocument, error) {
	var doc model.GuaranteeDocument
	err := db.Conn(ctx, r.db).Raw(`
		SELECT guarantee_id, file_name, content, uploaded_at
		FROM bond_document
		WHERE guarantee_id = ?
		LIMIT 1
	`, guaranteeID).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.GuaranteeID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &doc, nil
}

func (r *GuaranteeRepository) replaceContracts(conn *gorm.DB, bondID uuid.UUID, contractIDs []uuid.UUID) error {
	if err := conn.Exec(`DELETE FROM bond_contract WHERE bond_id = ?`, bondID).Error; err != nil {
		return err
	}
	for _, contractID := range contractIDs {
		if err := conn.Exec(`
			INSERT INTO bond_contract (bond_id, contract_id)
			VALUES (?, ?)
		`, bondID, contractID).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *GuaranteeRepository) contractLinks(conn *gorm.DB, bondIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	var rows []struct {
		BondID     uuid.UUID
		ContractID uuid.UUID
	}
	if err := conn.Raw(`
		SELECT bond_id, contract_id
		FROM bond_contract
		WHERE bond_id IN ?
		ORDER BY contract_id
	`, bondIDs).Scan(&rows).Error; err != nil {
		return nil, err
	}
	links := make(map[uuid.UUID][]uuid.UUID, len(bondIDs))
	for _, row := range rows {
		links[row.BondID] = append(links[row.BondID], row.ContractID)
	}
	return links, nil
}
