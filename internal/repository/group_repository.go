package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/db"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// PartnerIDs returns the contact ids of the group's members. Unknown groups
// have no members.
func (r *GroupRepository) PartnerIDs(ctx context.Context, groupCode string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := db.Conn(ctx, r.db).Raw(`
		SELECT DISTINCT partner_id
		FROM user_group_member
		WHERE group_code = ?
		ORDER BY partner_id
	`, groupCode).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
