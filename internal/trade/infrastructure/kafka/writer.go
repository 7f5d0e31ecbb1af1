package kafka

import "github.com/segmentio/kafka-go"

// NewWriter builds the kafka writer the outbox relay publishes through.
// The message carries its own topic.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}
