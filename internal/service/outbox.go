package service

import (
	"context"

	"github.com/nurpe/sid-bonds/internal/model"
)

// outbox collects the guarantee events raised inside a transaction. They are
// published only after the transaction commits.
type outbox struct {
	events []model.GuaranteeEvent
}

func (o *outbox) add(event model.GuaranteeEvent) {
	if o == nil {
		return
	}
	o.events = append(o.events, event)
}

func (s *GuaranteeService) flush(ctx context.Context, out *outbox) {
	for _, event := range out.events {
		s.publish(ctx, event)
	}
}
