package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Event types published on the catalog subjects.
const (
	ProductCreated  = "catalog.product.created"
	ProductUpdated  = "catalog.product.updated"
	ProductDeleted  = "catalog.product.deleted"
	CategoryCreated = "catalog.category.created"
	CategoryUpdated = "catalog.category.updated"
	CategoryDeleted = "catalog.category.deleted"
)

// Event is the envelope published for every catalog lifecycle change.
type Event struct {
	EventID    string      `json:"eventId"`
	EventType  string      `json:"eventType"`
	OccurredAt time.Time   `json:"occurredAt"`
	ActorID    string      `json:"actorId,omitempty"`
	EntityID   string      `json:"entityId"`
	EntityName string      `json:"entityName,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
}

// Publisher emits catalog lifecycle events over NATS. A nil Publisher is
// valid and drops every event, so callers never have to branch on whether
// event publishing is configured.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to the NATS server at natsURL.
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("catalog-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "catalog-events"),
	}, nil
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// Publish emits one event asynchronously. Publishing never blocks or fails
// the write path; delivery problems are logged and dropped.
func (p *Publisher) Publish(_ context.Context, eventType, actorID, entityID, entityName string, payload interface{}) {
	if p == nil || p.conn == nil {
		return
	}

	event := Event{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		EntityID:   entityID,
		EntityName: entityName,
		Payload:    payload,
	}

	go func() {
		data, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).WithField("eventType", eventType).Error("Failed to encode event")
			return
		}
		if err := p.conn.Publish(eventType, data); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": eventType,
				"entityId":  entityID,
			}).WithError(err).Error("Failed to publish event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"eventType": eventType,
			"entityId":  entityID,
		}).Debug("Event published")
	}()
}
