package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/sid-bonds/internal/model"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msg = msg
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	ch := &recordingChannel{}
	p := &Publisher{ch: ch, exchange: "bonds.events"}

	event := model.GuaranteeEvent{
		ID:          uuid.New(),
		Type:        model.EventStateChanged,
		GuaranteeID: uuid.New(),
		Name:        "AVAL/00001",
		FromState:   model.GuaranteeStateDraft,
		ToState:     model.GuaranteeStateRequested,
	}
	require.NoError(t, p.Publish(context.Background(), event))

	assert.Equal(t, "bonds.events", ch.exchange)
	assert.Equal(t, "bonds.state_changed", ch.key)
	assert.Equal(t, event.ID.String(), ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "requested", decoded["to_state"])
	assert.Equal(t, "AVAL/00001", decoded["name"])
}
