package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bike_booking/internal/model"

	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type publisher interface {
	Publish(ctx context.Context, msg BookingEvent) error
}

// Relay forwards the Redis Stream outbox to Kafka. A stream entry is acked
// only after Kafka accepted it; failures stay pending and are retried.
type Relay struct {
	rdb       *rd.Client
	publisher publisher
	log       *logrus.Logger

	stream   string
	group    string
	consumer string
	block    time.Duration
}

func NewRelay(rdb *rd.Client, p publisher, log *logrus.Logger, stream, group, consumer string) *Relay {
	return &Relay{
		rdb:       rdb,
		publisher: p,
		log:       log,
		stream:    stream,
		group:     group,
		consumer:  consumer,
		block:     2 * time.Second,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.log.WithError(err).Error("relay ensure group")
		return
	}

	for ctx.Err() == nil {
		if err := r.poll(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.log.WithError(err).Warn("relay poll")
			time.Sleep(300 * time.Millisecond)
		}
	}
}

// poll handles this consumer's pending entries first, then new ones.
func (r *Relay) poll(ctx context.Context) error {
	msgs, err := r.readGroup(ctx, "0", 0)
	if err != nil {
		return fmt.Errorf("read pending: %w", err)
	}
	if len(msgs) == 0 {
		if msgs, err = r.readGroup(ctx, ">", r.block); err != nil {
			return fmt.Errorf("read new: %w", err)
		}
	}

	for _, xm := range msgs {
		if err := r.processOne(ctx, xm); err != nil {
			return fmt.Errorf("process %s: %w", xm.ID, err)
		}
	}
	return nil
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out []rd.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	msg, err := parseBookingEvent(xm.Values)
	if err != nil {
		// Poison entries are dropped so they cannot block the stream.
		r.log.WithError(err).WithField("stream_id", xm.ID).Warn("relay dropped malformed event")
		return r.ackAndDelete(ctx, xm.ID)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, msg); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseBookingEvent(values map[string]interface{}) (BookingEvent, error) {
	fields := make(map[string]string, 7)
	for _, key := range []string{"event_id", "booking_id", "type", "to_status", "paid_amount", "occurred_at"} {
		v, err := getStreamString(values, key)
		if err != nil {
			return BookingEvent{}, err
		}
		fields[key] = v
	}
	from, _ := getStreamString(values, "from_status")

	paid, err := decimal.NewFromString(fields["paid_amount"])
	if err != nil {
		return BookingEvent{}, fmt.Errorf("invalid paid_amount %q", fields["paid_amount"])
	}
	at, err := time.Parse(time.RFC3339Nano, fields["occurred_at"])
	if err != nil {
		return BookingEvent{}, fmt.Errorf("invalid occurred_at %q", fields["occurred_at"])
	}

	msg := BookingEvent{
		EventID:    fields["event_id"],
		BookingID:  fields["booking_id"],
		Type:       fields["type"],
		FromStatus: model.BookingStatus(from),
		ToStatus:   model.BookingStatus(fields["to_status"]),
		PaidAmount: paid,
		OccurredAt: at,
	}
	if err := msg.Validate(); err != nil {
		return BookingEvent{}, err
	}
	return msg, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
