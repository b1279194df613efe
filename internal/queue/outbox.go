package queue

import (
	"context"
	"fmt"

	"bike_booking/internal/booking"

	rd "github.com/redis/go-redis/v9"
)

// StreamOutbox appends booking events to a Redis Stream. The Relay moves
// them to Kafka, so the request path never waits on the broker.
type StreamOutbox struct {
	rdb    *rd.Client
	stream string
}

func NewStreamOutbox(rdb *rd.Client, stream string) *StreamOutbox {
	return &StreamOutbox{rdb: rdb, stream: stream}
}

func (o *StreamOutbox) Publish(ctx context.Context, e booking.Event) error {
	msg := FromDomain(e)
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: msg.streamValues(),
	}).Err()
}
