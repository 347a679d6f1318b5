package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditConsumer binds a durable queue to every reservation.* routing key
// and appends each event as one line to LogPath.
type AuditConsumer struct {
	URL      string
	Exchange string
	Queue    string
	LogPath  string
}

// Run consumes until ctx is done, re-dialling the broker with exponential
// backoff whenever the connection drops.  Malformed messages are rejected
// without requeue so one bad payload cannot stall the queue.
func (c AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := dial(c.URL, dialTimeout)
		if err != nil {
			log.Warnf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("audit-consumer: consume loop ended: %v; reconnecting", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	exchange := c.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if err := ch.Qos(50, 0, false); err != nil {
		log.Warnf("audit-consumer: set QoS failed: %v", err)
	}
	q, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "reservation.*", exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handle(d.Body); err != nil {
			log.Errorf("audit-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c AuditConsumer) handle(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == 0 {
		return errors.New("event without type or reservation id")
	}
	path := c.LogPath
	if path == "" {
		path = filepath.Join("logs", "reservations.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLogLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLogLine renders ev as a single human-readable audit line.
func FormatLogLine(ev ReservationEvent) string {
	requester := "-"
	if ev.RequesterID != nil {
		requester = fmt.Sprint(*ev.RequesterID)
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%d | unit_id=%d | venue_id=%d | status=%s | source=%s | slot=%s..%s | requester=%s | actor=%d | total=%d cents\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ReservationID, ev.UnitID, ev.VenueID,
		ev.Status, ev.Source, ev.StartTime.UTC().Format(time.RFC3339), ev.EndTime.UTC().Format(time.RFC3339),
		requester, ev.ActorID, ev.TotalPriceCents)
}
