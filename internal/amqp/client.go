package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"financify/internal/log"
	"financify/internal/reports"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	baseBackoff    = time.Second
	maxBackoff     = 30 * time.Second
)

// Config names the broker and the topology the client declares.
type Config struct {
	URL         string
	Exchange    string
	Queue       string
	EventsQueue string
}

// Client publishes run requests and run events and consumes run requests.
// Publishing goes through a circuit breaker; the consumer reconnects with
// exponential backoff.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	eventsQueue  string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	cbMu         sync.Mutex
	lastFailure  time.Time
}

// NewClient dials the broker and declares the exchange and queues.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	c := &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		queueName:    cfg.Queue,
		eventsQueue:  cfg.EventsQueue,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) lg() *log.Logger {
	if c.logger == nil {
		return log.FromContext(context.Background())
	}
	return c.logger
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName, c.eventsQueue); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	c.conn, c.channel = conn, channel
	return nil
}

func setup(ch *amqp091.Channel, exchange string, queues ...string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, q := range queues {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		// routing key is the queue name
		if err := ch.QueueBind(q, q, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// ensureConnected redials when the connection or channel was closed.
func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()
	return c.connectLocked()
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.cbMu.Lock()
		elapsed := time.Since(c.lastFailure)
		c.cbMu.Unlock()
		if elapsed > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.cbMu.Lock()
	c.lastFailure = time.Now()
	c.cbMu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.lg().Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

// exponentialBackoff returns the wait before reconnect attempt n.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(baseBackoff<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "closed", "EOF", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: circuit breaker is open", routingKey)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ensureConnected(); err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	err := ch.PublishWithContext(ctx, c.exchangeName, routingKey, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// EnqueueReportRun publishes a run request and returns its request id.
func (c *Client) EnqueueReportRun(ctx context.Context, requestedBy int64, trigger string) (string, error) {
	msg := NewReportRunMessage(requestedBy, trigger)
	body, err := msg.ToJSON()
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queueName, body); err != nil {
		return "", err
	}

	c.lg().InfoContext(ctx, "Published report run request",
		"request_id", msg.RequestID,
		log.FieldUserID, requestedBy,
		log.FieldTrigger, trigger,
		"queue", c.queueName)
	return msg.RequestID, nil
}

// PublishReportsCreated publishes the reports of a finished run to the
// events queue. It is a no-op when no events queue is configured.
func (c *Client) PublishReportsCreated(ctx context.Context, res *reports.RunResult) error {
	if c.eventsQueue == "" {
		return nil
	}
	event, err := NewReportsCreatedEvent(res)
	if err != nil {
		return err
	}
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.publish(ctx, c.eventsQueue, body); err != nil {
		return err
	}

	c.lg().InfoContext(ctx, "Published reports created event",
		log.FieldRunID, res.RunID,
		log.FieldReports, len(res.Reports))
	return nil
}

// ConsumeReportRuns delivers run requests to handler until ctx is done.
// Successful deliveries are acked. Malformed bodies and PermanentError
// failures are dropped; other failures are requeued. Lost connections are
// re-established with exponential backoff.
func (c *Client) ConsumeReportRuns(ctx context.Context, handler func(context.Context, *ReportRunMessage) error) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		c.lg().WarnContext(ctx, "AMQP consumer lost connection, retrying",
			log.FieldError, err.Error(),
			"attempt", attempt+1,
			"backoff", wait)
		attempt++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, *ReportRunMessage) error, connected func()) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	c.mu.Lock()
	ch, err := c.conn.Channel()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()

	c.lg().InfoContext(ctx, "Started consuming report run requests", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.lg().InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed: %w", amqp091.ErrClosed)
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery the consumer needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type deliveryOutcome int

const (
	outcomeAcked deliveryOutcome = iota
	outcomeDropped
	outcomeRequeued
)

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *ReportRunMessage) error) {
	c.settle(ctx, d.Body, d.Redelivered, d, handler)
}

// settle runs handler and acks, drops or requeues the delivery. A
// transient failure is requeued once; a redelivered message that fails
// again is dropped so a persistent store error cannot loop.
func (c *Client) settle(ctx context.Context, body []byte, redelivered bool, ack acknowledger, handler func(context.Context, *ReportRunMessage) error) deliveryOutcome {
	msg, err := ReportRunMessageFromJSON(body)
	if err != nil {
		c.lg().ErrorContext(ctx, "Dropping malformed message", log.FieldError, err.Error())
		c.nack(ctx, ack, "", false)
		return outcomeDropped
	}

	if err := handler(ctx, msg); err != nil {
		if IsPermanent(err) || redelivered {
			c.lg().ErrorContext(ctx, "Dropping report run request",
				"request_id", msg.RequestID,
				"redelivered", redelivered,
				log.FieldError, err.Error())
			c.nack(ctx, ack, msg.RequestID, false)
			return outcomeDropped
		}
		c.lg().ErrorContext(ctx, "Report run request failed, requeueing",
			"request_id", msg.RequestID, log.FieldError, err.Error())
		c.nack(ctx, ack, msg.RequestID, true)
		return outcomeRequeued
	}

	if err := ack.Ack(false); err != nil {
		c.lg().ErrorContext(ctx, "Failed to ack delivery",
			"request_id", msg.RequestID, log.FieldError, err.Error())
	}
	return outcomeAcked
}

func (c *Client) nack(ctx context.Context, ack acknowledger, requestID string, requeue bool) {
	if err := ack.Nack(false, requeue); err != nil {
		c.lg().ErrorContext(ctx, "Failed to nack delivery",
			"request_id", requestID,
			"requeue", requeue,
			log.FieldError, err.Error())
	}
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
