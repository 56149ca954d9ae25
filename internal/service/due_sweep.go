package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/sid-bonds/internal/model"
)

var systemPrincipal = model.Principal{
	UserID: uuid.Nil,
	Roles:  []string{model.RoleBondsManager},
}

type SweepResult struct {
	Expired   int
	Reminders int
}

// SweepOverdue handles active guarantees whose due date has passed. With
// auto-expiry enabled they are expired, otherwise their creator gets a
// follow-up task.
func (s *GuaranteeService) SweepOverdue(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	today := dateOnly(s.now())
	overdue, err := s.repo.List(ctx, model.GuaranteeFilter{
		States:    []model.GuaranteeState{model.GuaranteeStateActive},
		DueBefore: &today,
	})
	if err != nil {
		return result, err
	}
	if len(overdue) == 0 {
		return result, nil
	}

	if s.cfg.AutoExpire {
		ids := make([]uuid.UUID, 0, len(overdue))
		for _, g := range overdue {
			ids = append(ids, g.ID)
		}
		expired, err := s.Expire(ctx, ids, systemPrincipal)
		if err != nil {
			return result, err
		}
		result.Expired = len(expired)
		return result, nil
	}

	if s.reviewer.notifier == nil {
		s.log.Warn().Int("overdue", len(overdue)).Msg("overdue guarantees found, no notifier configured")
		return result, nil
	}
	for _, g := range overdue {
		created, err := s.reviewer.notifier.ScheduleTask(ctx, TaskRequest{
			Target:       model.Target{Model: model.ResModelGuarantee, ID: g.ID},
			AssigneeID:   g.CreatedBy,
			ActivityType: model.ActivityTypeTodo,
			Summary:      fmt.Sprintf("Guarantee %s is past its due date", g.Name),
			Note:         fmt.Sprintf("Guarantee %s was due on %s and is still active.", g.Name, g.DueDate.Format("2006-01-02")),
			DueDate:      today,
		})
		if err != nil {
			return result, err
		}
		if created {
			result.Reminders++
		}
	}
	s.log.Info().Int("overdue", len(overdue)).Int("reminders", result.Reminders).Msg("overdue sweep finished")
	return result, nil
}
