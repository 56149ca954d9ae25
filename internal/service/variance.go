package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/sid-bonds/internal/model"
)

var hundred = decimal.NewFromInt(100)

// VariancePercent returns |new-old|/|old|*100. A move away from zero counts as
// 100%. ok is false when both values are zero.
func VariancePercent(oldValue, newValue decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if oldValue.IsZero() {
		if newValue.IsZero() {
			return decimal.Zero, false
		}
		return hundred, true
	}
	return newValue.Sub(oldValue).Abs().Div(oldValue.Abs()).Mul(hundred), true
}

var varianceExemptStates = map[model.GuaranteeState]struct{}{
	model.GuaranteeStateExpired:    {},
	model.GuaranteeStateSolicitDev: {},
	model.GuaranteeStateRecovered:  {},
	model.GuaranteeStateSolicitCan: {},
	model.GuaranteeStateCancelled:  {},
}

func varianceExempt(state model.GuaranteeState) bool {
	_, ok := varianceExemptStates[state]
	return ok
}

type VariancePolicy struct {
	Threshold    decimal.Decimal
	ManagerGroup string
	TaskDueDays  int
}

type VarianceOutcome struct {
	Percent     decimal.Decimal
	NotePosted  bool
	TaskCreated bool
}

type varianceReviewer struct {
	policy   VariancePolicy
	notifier Notifier
	groups   GroupDirectory
	log      zerolog.Logger
	now      func() time.Time
}

// review posts a note for the guarantee managers and schedules one follow-up
// task for the creator when the order base moved past the threshold. The
// review_requested event goes to out and is published once the write commits.
func (r varianceReviewer) review(
	ctx context.Context,
	g model.Guarantee,
	oldBase, newBase decimal.Decimal,
	changes model.ChangeSet,
	out *outbox,
) (VarianceOutcome, error) {
	var outcome VarianceOutcome
	if !changes.Any(model.FieldContracts, model.FieldBaseAmount, model.FieldCustomer) {
		return outcome, nil
	}
	pct, ok := VariancePercent(oldBase, newBase)
	if !ok {
		return outcome, nil
	}
	outcome.Percent = pct
	if !pct.GreaterThan(r.policy.Threshold) || varianceExempt(g.State) {
		return outcome, nil
	}

	body := fmt.Sprintf(
		"The order base of guarantee %s changed by %s%% (from %s to %s). Please review the guarantee amount.",
		g.Name, pct.StringFixed(2), oldBase.StringFixed(2), newBase.StringFixed(2),
	)
	if r.notifier == nil {
		r.log.Warn().
			Str("guarantee", g.Name).
			Str("variance_pct", pct.StringFixed(2)).
			Msg("order base variance above threshold, no notifier configured")
		return outcome, nil
	}

	var mentions []uuid.UUID
	if r.groups != nil && r.policy.ManagerGroup != "" {
		ids, err := r.groups.PartnerIDs(ctx, r.policy.ManagerGroup)
		if err != nil {
			return outcome, err
		}
		mentions = ids
	}

	target := model.Target{Model: model.ResModelGuarantee, ID: g.ID}
	if err := r.notifier.PostNote(ctx, target, body, mentions); err != nil {
		return outcome, err
	}
	outcome.NotePosted = true

	created, err := r.notifier.ScheduleTask(ctx, TaskRequest{
		Target:       target,
		AssigneeID:   g.CreatedBy,
		ActivityType: model.ActivityTypeTodo,
		Summary:      reviewSummary(g),
		Note:         body,
		DueDate:      dateOnly(r.now()).AddDate(0, 0, r.policy.TaskDueDays),
	})
	if err != nil {
		return outcome, err
	}
	outcome.TaskCreated = created

	out.add(model.GuaranteeEvent{
		Type:        model.EventReviewRequested,
		GuaranteeID: g.ID,
		Name:        g.Name,
		Additional: map[string]any{
			"variance_pct": pct.StringFixed(2),
			"old_base":     oldBase.StringFixed(2),
			"new_base":     newBase.StringFixed(2),
		},
	})

	r.log.Info().
		Str("guarantee", g.Name).
		Str("variance_pct", pct.StringFixed(2)).
		Bool("task_created", created).
		Msg("guarantee review requested")
	return outcome, nil
}

func reviewSummary(g model.Guarantee) string {
	return fmt.Sprintf("Review guarantee %s", g.Name)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
