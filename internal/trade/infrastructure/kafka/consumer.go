package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	paydomain "github.com/trademall/orderflow/internal/pay/domain"
	"github.com/trademall/orderflow/internal/trade/application"
	"github.com/trademall/orderflow/internal/trade/domain"
	"github.com/trademall/orderflow/pkg/idempotency"
	"github.com/trademall/orderflow/pkg/tracing"
)

// Handler processes one message body. A returned error is logged and
// the message is committed anyway; redelivery is pointless for the
// guarded no-op semantics both handlers carry.
type Handler func(ctx context.Context, value []byte) error

type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	idem   *idempotency.Store
	tracer trace.Tracer
	name   string
	handle Handler
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group, name string, idem *idempotency.Store, handle Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		idem:   idem,
		tracer: otel.Tracer("trade-consumer"),
		name:   name,
		handle: handle,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, c.name)

		if err := c.handle(msgCtx, msg.Value); err != nil {
			c.log.Error("message handling failed", "consumer", c.name, "err", err)
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

// TimeoutHandler cancels orders whose delayed timeout check fired.
func TimeoutHandler(log *slog.Logger, svc *application.Service) Handler {
	return func(ctx context.Context, value []byte) error {
		var event domain.TimeoutCheck
		if err := json.Unmarshal(value, &event); err != nil {
			log.Error("unmarshal timeout check failed", "err", err)
			return nil
		}
		return svc.CancelOrder(ctx, event.OrderID)
	}
}

// PaySuccessHandler marks orders paid when the payment side settles.
func PaySuccessHandler(log *slog.Logger, svc *application.Service) Handler {
	return func(ctx context.Context, value []byte) error {
		var event paydomain.PaySuccess
		if err := json.Unmarshal(value, &event); err != nil {
			log.Error("unmarshal pay success failed", "err", err)
			return nil
		}
		return svc.MarkOrderPaySuccess(ctx, event.BizOrderNo)
	}
}
