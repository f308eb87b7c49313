package events

import (
	"context"

	"resourcehub/pkg/config"
	"resourcehub/pkg/kafka"
	kafka_config "resourcehub/pkg/kafka/config"
	kafka_middleware "resourcehub/pkg/kafka/middleware"
)

const schemaVersion = "1"

// Publisher delivers lifecycle events to the notification gateway's bus.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(cfg *config.Config, serviceName string) (Publisher, error) {
	kcfg := kafka_config.Load()

	producer, err := kafka.NewProducer(kcfg, cfg.EventTopic, cfg.EventDLQTopic)
	if err != nil {
		return nil, err
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	return &kafkaPublisher{
		producer: producer,
		source:   serviceName,
	}, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, evt Event) error {
	msg := kafka.NewMessage().
		WithKey(evt.Key).
		WithValue(evt.Payload).
		WithEventType(evt.Type).
		WithSchemaVersion(schemaVersion).
		WithSource(p.source).
		Build()

	return p.producer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}
