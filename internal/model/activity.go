package model

import (
	"time"

	"github.com/google/uuid"
)

type ResModel string

const (
	ResModelGuarantee ResModel = "bonds.order"
	ResModelContract  ResModel = "sale.quotations"
)

type Note struct {
	ID        uuid.UUID   `json:"id"`
	ResModel  ResModel    `json:"res_model"`
	ResID     uuid.UUID   `json:"res_id"`
	Body      string      `json:"body"`
	Mentions  []uuid.UUID `gorm:"-" json:"mentions,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

const ActivityTypeTodo = "todo"

type Activity struct {
	ID           uuid.UUID  `json:"id"`
	ResModel     ResModel   `json:"res_model"`
	ResID        uuid.UUID  `json:"res_id"`
	AssigneeID   uuid.UUID  `json:"assignee_id"`
	ActivityType string     `json:"activity_type"`
	Summary      string     `json:"summary"`
	Note         string     `json:"note"`
	DueDate      time.Time  `json:"due_date"`
	Done         bool       `json:"done"`
	DoneAt       *time.Time `json:"done_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Target struct {
	Model ResModel  `json:"model"`
	ID    uuid.UUID `json:"id"`
}
