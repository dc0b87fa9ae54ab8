package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/resilience"
)

const (
	DefaultOrderSubject = "tryon.custom_orders"
	consumerGroup       = "order-workers"
	orderIDHeader       = "Order-Id"
)

// OrderQueue hands custom orders to whoever listens on the order subject.
type OrderQueue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ClientName         string
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func Connect(url, subject string, options Options) (*OrderQueue, error) {
	if subject == "" {
		subject = DefaultOrderSubject
	}
	name := options.ClientName
	if name == "" {
		name = "tryon-studio"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &OrderQueue{conn: conn, subject: subject, executor: options.ResilienceExecutor}, nil
}

func (q *OrderQueue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// SubmitCustomOrder publishes the order as JSON.
func (q *OrderQueue) SubmitCustomOrder(ctx context.Context, order domain.SubmittedOrder) error {
	msg, err := encodeOrder(q.subject, order)
	if err != nil {
		return err
	}
	call := func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Do(ctx, "nats.publish_order", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// ConsumeCustomOrders blocks until ctx is done, passing each decoded order to handler.
// Undecodable messages are logged and skipped.
func (q *OrderQueue) ConsumeCustomOrders(ctx context.Context, handler func(context.Context, domain.SubmittedOrder) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, consumerGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		order, err := decodeOrder(msg)
		if err != nil {
			slog.Error("order_decode_failed", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, order); err != nil {
			slog.Error("order_handler_failed", "order_id", order.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeOrder(subject string, order domain.SubmittedOrder) (*nats.Msg, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal custom order: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(orderIDHeader, order.ID)
	msg.Header.Set("Content-Type", "application/json")
	return msg, nil
}

func decodeOrder(msg *nats.Msg) (domain.SubmittedOrder, error) {
	var order domain.SubmittedOrder
	if err := json.Unmarshal(msg.Data, &order); err != nil {
		return domain.SubmittedOrder{}, fmt.Errorf("unmarshal custom order: %w", err)
	}
	if order.ID == "" && msg.Header != nil {
		order.ID = msg.Header.Get(orderIDHeader)
	}
	if order.ID == "" {
		return domain.SubmittedOrder{}, fmt.Errorf("custom order without id")
	}
	return order, nil
}
