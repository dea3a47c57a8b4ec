// Package fulfillment is the consumer side of order.placed: it moves
// freshly placed orders from pending to processing.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/checkout"
	kafkax "github.com/Reeshan-shrestha/fyp-final-sub000/internal/kafka"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/orders"
	"github.com/Reeshan-shrestha/fyp-final-sub000/internal/redisx"
)

type Service struct {
	Orders      checkout.OrderStore
	Redis       *redis.Client
	Machine     *orders.Machine
	Producer    checkout.Publisher // order.status
	ServiceName string
}

// HandleOrderPlaced is wired as the consumer handler.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil // ignore
	}

	// dedup via Redis on event_id
	dkey := fmt.Sprintf(redisx.KeyDedup, "fulfillment", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	o, err := s.Orders.Get(ctx, p.OrderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return nil // cancelled-and-gone or replayed event; nothing to do
	}
	if err != nil {
		return err
	}
	if o.Status != orders.StatusPending {
		return nil // already advanced (or cancelled in the meantime)
	}

	from := o.Status
	if err := s.Machine.Transition(o, orders.StatusProcessing, "accepted for fulfillment"); err != nil {
		var ite *orders.InvalidTransitionError
		if errors.As(err, &ite) {
			return nil // raced with a cancel; the offset may commit
		}
		return err
	}
	if err := s.Orders.UpdateStatus(ctx, o); err != nil {
		return err
	}

	s.publishStatus(o, from, env.TraceID)
	return nil
}

func (s *Service) publishStatus(o *orders.Order, from orders.Status, trace string) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.OrderStatusPayload{OrderID: o.ID, From: from, To: o.Status}),
	}
	s.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
