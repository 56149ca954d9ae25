package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/sid-bonds/internal/db"
	"github.com/nurpe/sid-bonds/internal/model"
	"github.com/nurpe/sid-bonds/internal/service"
)

// ActivityRepository stores record notes and follow-up tasks. It implements
// service.Notifier and service.ActivityStore.
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) PostNote(ctx context.Context, target model.Target, body string, mentions []uuid.UUID) error {
	conn := db.Conn(ctx, r.db)

	var noteID uuid.UUID
	if err := conn.Raw(`
		INSERT INTO bond_note (res_model, res_id, body)
		VALUES (?, ?, ?)
		RETURNING id
	`, target.Model, target.ID, body).Scan(&noteID).Error; err != nil {
		return err
	}
	for _, partnerID := range mentions {
		if err := conn.Exec(`
			INSERT INTO bond_note_mention (note_id, partner_id)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, noteID, partnerID).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *ActivityRepository) ScheduleTask(ctx context.Context, req service.TaskRequest) (bool, error) {
	// uq_bond_activity_open keeps at most one open task per summary.
	res := db.Conn(ctx, r.db).Exec(`
		INSERT INTO bond_activity (res_model, res_id, assignee_id, activity_type, summary, note, due_date)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM bond_activity
			WHERE res_model = ?
				AND res_id = ?
				AND assignee_id = ?
				AND activity_type = ?
				AND summary = ?
				AND done = FALSE
		)
		ON CONFLICT DO NOTHING
	`,
		req.Target.Model, req.Target.ID, req.AssigneeID, req.ActivityType, req.Summary, req.Note, req.DueDate,
		req.Target.Model, req.Target.ID, req.AssigneeID, req.ActivityType, req.Summary,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ActivityRepository) ListNotes(ctx context.Context, target model.Target) ([]model.Note, error) {
	conn := db.Conn(ctx, r.db)

	var notes []model.Note
	if err := conn.Raw(`
		SELECT id, res_model, res_id, body, created_at
		FROM bond_note
		WHERE res_model = ? AND res_id = ?
		ORDER BY created_at DESC
	`, target.Model, target.ID).Scan(&notes).Error; err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return notes, nil
	}

	ids := make([]uuid.UUID, len(notes))
	for i := range notes {
		ids[i] = notes[i].ID
	}
	var rows []struct {
		NoteID    uuid.UUID
		PartnerID uuid.UUID
	}
	if err := conn.Raw(`
		SELECT note_id, partner_id FROM bond_note_mention WHERE note_id IN ?
	`, ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	mentions := make(map[uuid.UUID][]uuid.UUID, len(notes))
	for _, row := range rows {
		mentions[row.NoteID] = append(mentions[row.NoteID], row.PartnerID)
	}
	for i := range notes {
		notes[i].Mentions = mentions[notes[i].ID]
	}
	return notes, nil
}

func (r *ActivityRepository) ListActivities(ctx context.Context, target model.Target, openOnly bool) ([]model.Activity, error) {
	query := `
		SELECT id, res_model, res_id, assignee_id, activity_type, summary, note, due_date, done, done_at, created_at
		FROM bond_activity
		WHERE res_model = ? AND res_id = ?
	`
	if openOnly {
		query += " AND done = FALSE"
	}
	query += " ORDER BY due_date ASC, created_at ASC"

	var items []model.Activity
	if err := db.Conn(ctx, r.db).Raw(query, target.Model, target.ID).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ActivityRepository) MarkDone(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := db.Conn(ctx, r.db).Exec(`
		UPDATE bond_activity SET done = TRUE, done_at = ? WHERE id = ? AND done = FALSE
	`, at, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
