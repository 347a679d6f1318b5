package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange reservation events are published to.
const DefaultExchange = "reservation.events"

const (
	// DefaultBuffer is how many events may wait for the broker before
	// Notify starts dropping.
	DefaultBuffer = 256

	dialTimeout    = 2 * time.Second
	publishTimeout = 5 * time.Second
)

// dial connects to the broker; timeout bounds both the TCP connect and
// the AMQP handshake.
func dial(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// Publisher publishes reservation events to a topic exchange.  Events are
// queued on a bounded buffer and delivered by a single worker goroutine,
// so Notify never waits on the broker.  The broker connection is dialled
// lazily and re-dialled after it drops, so the service starts and keeps
// booking while RabbitMQ is unavailable.
type Publisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration

	events    chan ReservationEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for url and starts its delivery
// worker.  No connection is made until the first event arrives.
func NewPublisher(url, exchange string) *Publisher {
	return newPublisher(url, exchange, DefaultBuffer)
}

func newPublisher(url, exchange string, buffer int) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		url:         url,
		exchange:    exchange,
		dialTimeout: dialTimeout,
		events:      make(chan ReservationEvent, buffer),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.events:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			_ = p.Publish(ctx, ev)
			cancel()
		case <-p.quit:
			return
		}
	}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	conn, err := dial(p.url, p.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// Durable so the exchange survives broker restarts.
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// Publish sends ev with its type as routing key and waits for the broker.
// Errors are logged and returned.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		log.Warnf("rabbitmq: %v", err)
		return err
	}
	err = ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		log.Warnf("rabbitmq: publish %s #%d failed: %v", ev.Type, ev.ReservationID, err)
		p.closeLocked()
		return err
	}
	return nil
}

// Notify implements service.Notifier.  It queues ev for the worker and
// drops it when the buffer is full or the publisher is closed.
func (p *Publisher) Notify(_ context.Context, ev ReservationEvent) {
	select {
	case <-p.quit:
		return
	default:
	}
	select {
	case p.events <- ev:
	default:
		log.Warnf("rabbitmq: buffer full, dropping %s #%d", ev.Type, ev.ReservationID)
	}
}

// Close stops the worker and releases the broker connection.  Events
// still buffered are discarded.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() { close(p.quit) })
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}
