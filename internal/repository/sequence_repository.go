package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/db"
)

type SequenceRepository struct {
	db      *gorm.DB
	prefix  string
	padding int
}

func NewSequenceRepository(db *gorm.DB, prefix string, padding int) *SequenceRepository {
	return &SequenceRepository{db: db, prefix: prefix, padding: padding}
}

// Next reserves the next number of the sequence, creating the sequence on
// first use.
func (r *SequenceRepository) Next(ctx context.Context, code string) (string, error) {
	var row struct {
		Prefix  string
		Padding int
		Number  int64
	}
	err := db.Conn(ctx, r.db).Raw(`
		INSERT INTO bond_sequence (code, prefix, padding, next_number)
		VALUES (?, ?, ?, 2)
		ON CONFLICT (code) DO UPDATE
		SET next_number = bond_sequence.next_number + 1
		RETURNING prefix, padding, next_number - 1 AS number
	`, code, r.prefix, r.padding).Scan(&row).Error
	if err != nil {
		return "", err
	}
	if row.Number == 0 {
		return "", fmt.Errorf("sequence %s returned no number", code)
	}
	return formatSequence(row.Prefix, row.Padding, row.Number), nil
}

func formatSequence(prefix string, padding int, number int64) string {
	return fmt.Sprintf("%s%0*d", prefix, padding, number)
}
