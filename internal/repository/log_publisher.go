package repository

import (
	"context"

	pkgkafka "CandleFlow/pkg/kafka"
	applogger "CandleFlow/pkg/logger"
)

// KafkaLogPublisher ships aggregated error logs to Kafka.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
	key      []byte
}

func NewKafkaLogPublisher(producer *pkgkafka.Producer, service string) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer, key: []byte(service)}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, p.key, payload)
}

var _ applogger.Publisher = (*KafkaLogPublisher)(nil)
