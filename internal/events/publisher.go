package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/libequip/loans/internal/db"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	exchangeName = "libequip.events"
	exchangeType = "topic"

	// Event types
	EventTypeScheduleCreated  = "schedule.created"
	EventTypeScheduleReturned = "schedule.returned"
	EventTypeLoanCreated      = "loan.created"
	EventTypeLoanReturned     = "loan.returned"
	EventTypeInventoryChanged = "inventory.changed"

	// Retry configuration
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second

	confirmTimeout = 5 * time.Second
)

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

// Event is the wire shape of a domain event
type Event struct {
	EventID      string                 `json:"event_id"`
	EventType    string                 `json:"event_type"`
	EventVersion string                 `json:"event_version"`
	Timestamp    string                 `json:"timestamp"`
	Payload      map[string]interface{} `json:"payload"`
}

// NewPublisher creates a new event publisher
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Publisher confirms so a lost broker doesn't silently drop events
	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Info("Connected to RabbitMQ", zap.String("exchange", exchangeName))

	return &Publisher{
		conn:    conn,
		channel: channel,
		log:     log,
	}, nil
}

// PublishScheduleCreated publishes a schedule created event
func (p *Publisher) PublishScheduleCreated(ctx context.Context, schedule *db.Schedule) error {
	return p.publish(ctx, EventTypeScheduleCreated, map[string]interface{}{
		"id":           schedule.ID,
		"name":         schedule.Name,
		"quantity":     schedule.Quantity,
		"equipment_id": schedule.EquipmentID,
		"start_date":   schedule.StartDate.UTC().Format(time.RFC3339),
		"return_date":  schedule.ReturnDate.UTC().Format(time.RFC3339),
	})
}

// PublishScheduleReturned publishes a schedule returned event
func (p *Publisher) PublishScheduleReturned(ctx context.Context, schedule *db.Schedule) error {
	return p.publish(ctx, EventTypeScheduleReturned, map[string]interface{}{
		"id":           schedule.ID,
		"quantity":     schedule.Quantity,
		"equipment_id": schedule.EquipmentID,
	})
}

// PublishLoanCreated publishes a loan created event
func (p *Publisher) PublishLoanCreated(ctx context.Context, loan *db.Loan) error {
	return p.publish(ctx, EventTypeLoanCreated, map[string]interface{}{
		"id":          loan.ID,
		"name":        loan.Name,
		"book_id":     loan.BookID,
		"start_date":  loan.StartDate.UTC().Format(time.RFC3339),
		"return_date": loan.ReturnDate.UTC().Format(time.RFC3339),
	})
}

// PublishLoanReturned publishes a loan returned event
func (p *Publisher) PublishLoanReturned(ctx context.Context, loan *db.Loan) error {
	return p.publish(ctx, EventTypeLoanReturned, map[string]interface{}{
		"id":      loan.ID,
		"book_id": loan.BookID,
	})
}

// PublishInventoryChanged publishes an administrative inventory change
// (item created, edited or deleted)
func (p *Publisher) PublishInventoryChanged(ctx context.Context, kind, action string, id uint, name string) error {
	return p.publish(ctx, EventTypeInventoryChanged, map[string]interface{}{
		"kind":   kind,
		"action": action,
		"id":     id,
		"name":   name,
	})
}

// publish sends one event with exponential backoff retry and waits for
// the broker confirmation
func (p *Publisher) publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	event := Event{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		EventVersion: "1.0.0",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Payload:      payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to marshal event", zap.Error(err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}

		confirms := p.channel.NotifyPublish(make(chan amqp.Confirmation, 1))

		err := p.channel.PublishWithContext(
			ctx,
			exchangeName,
			eventType,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				MessageId:    event.EventID,
				Body:         body,
				Headers: amqp.Table{
					"event_type":    event.EventType,
					"event_version": event.EventVersion,
				},
			},
		)
		if err != nil {
			lastErr = err
			p.log.Warn("Failed to publish event, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		select {
		case confirm := <-confirms:
			if confirm.Ack {
				p.log.Debug("Event published",
					zap.String("event_id", event.EventID),
					zap.String("event_type", event.EventType),
				)
				return nil
			}
			lastErr = fmt.Errorf("event not acknowledged")
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmTimeout):
			lastErr = fmt.Errorf("confirmation timeout")
		}

		p.log.Warn("Event publish not confirmed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	p.log.Error("Failed to publish event after retries",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Int("attempts", maxRetries),
		zap.Error(lastErr),
	)
	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

// IsHealthy checks if the publisher connection is healthy
func (p *Publisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Close closes the publisher connection
func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Error("Failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.log.Error("Failed to close connection", zap.Error(err))
			return err
		}
	}
	return nil
}
