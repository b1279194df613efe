package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Consumer records booking events into booking_history.
type Consumer struct {
	r   *kafka.Reader
	db  *gorm.DB
	log *logrus.Logger
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB, log *logrus.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db:  db,
		log: log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run commits an offset only after the event is recorded (or found
// unrecordable), so a crash replays rather than loses events.
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return
		}

		var msg BookingEvent
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.log.WithError(err).WithField("offset", m.Offset).Warn("consumer dropped undecodable event")
		} else if err := msg.Validate(); err != nil {
			c.log.WithError(err).WithField("offset", m.Offset).Warn("consumer dropped invalid event")
		} else {
			for {
				err := Record(ctx, c.db, msg)
				if err == nil {
					break
				}
				c.log.WithError(err).WithField("event_id", msg.EventID).Error("consumer record event")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			c.log.WithError(err).Warn("consumer commit")
		}
	}
}

// Record stores one event. Redelivery of an event already stored is a
// no-op thanks to the unique event_id.
func Record(ctx context.Context, db *gorm.DB, msg BookingEvent) error {
	h := msg.history()
	err := db.WithContext(ctx).Create(&h).Error
	if errorsLikeUnique(err) {
		return nil
	}
	return err
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
