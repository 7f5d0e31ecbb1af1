package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/trademall/orderflow/internal/pay/domain"
	"github.com/trademall/orderflow/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher emits settlement success events. Delivery is best effort
// from the settlement's point of view; the caller logs failures.
type Publisher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewPublisher(log *slog.Logger, producer Producer, topic string) *Publisher {
	return &Publisher{log: log, producer: producer, topic: topic}
}

// NewWriter builds the kafka writer the publisher usually runs on.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

func (p *Publisher) PublishPaySuccess(ctx context.Context, bizOrderNo string) error {
	payload, err := json.Marshal(domain.PaySuccess{BizOrderNo: bizOrderNo})
	if err != nil {
		return err
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(domain.EventPaySuccess)}}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(bizOrderNo),
		Value:   payload,
		Headers: headers,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.log.Info("pay success published", "biz_order_no", bizOrderNo)
	return nil
}
