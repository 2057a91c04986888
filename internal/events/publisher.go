// Package events publishes committed ledger entries to Kafka so downstream systems can
// follow stock movements without polling the history table.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"inventory-ledger/internal/core"
)

// EventType of every message produced by Publisher.
const EventType = "inventory.ledger.committed"

// Event is the JSON payload of one Kafka message. A move produces a single event
// carrying both legs.
type Event struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Operation  core.Operation      `json:"operation"`
	OccurredAt time.Time           `json:"occurred_at"`
	Entries    []core.HistoryEntry `json:"entries"`
}

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns an asynchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
}

// Publisher implements core.Observer. Publishing never affects the operation outcome:
// the transaction has already committed, so failures are only logged.
type Publisher struct {
	w       Writer
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

var _ core.Observer = (*Publisher)(nil)

func NewPublisher(w Writer, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{w: w, logger: logger, now: time.Now, timeout: 5 * time.Second}
}

func (p *Publisher) Committed(ctx context.Context, op core.Operation, entries []core.HistoryEntry) {
	if len(entries) == 0 {
		return // memo edits do not touch the ledger
	}
	ev := Event{
		ID:         uuid.NewString(),
		Type:       EventType,
		Operation:  op,
		OccurredAt: p.now().UTC(),
		Entries:    entries,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode ledger event", zap.String("op", string(op)), zap.Error(err))
		return
	}

	// Keyed by item and lot code so every event of one lot lands on one partition in order.
	first := entries[0]
	key := []byte(first.LotCode + "@" + strconv.FormatInt(first.ItemID, 10))

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.w.WriteMessages(wctx, kafka.Message{
		Key:   key,
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventType)},
			{Key: "event-id", Value: []byte(ev.ID)},
		},
	}); err != nil {
		p.logger.Warn("failed to publish ledger event",
			zap.String("event_id", ev.ID), zap.String("op", string(op)), zap.Error(err))
		return
	}
	p.logger.Debug("ledger event published", zap.String("event_id", ev.ID), zap.String("op", string(op)))
}

func (p *Publisher) Rejected(context.Context, core.Operation, error) {}

func (p *Publisher) Close() error {
	return p.w.Close()
}
