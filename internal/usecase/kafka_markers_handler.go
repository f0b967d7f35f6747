package usecase

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"CandleFlow/internal/domain/models"
	domrepo "CandleFlow/internal/domain/repository"
	pkgkafka "CandleFlow/pkg/kafka"
)

var validate = validator.New()

// KafkaMarkersHandler drives marker fan-out from a Kafka topic.
type KafkaMarkersHandler struct {
	topic   string
	fanout  *MarkerFanout
	metrics domrepo.Metrics
}

func NewKafkaMarkersHandler(topic string, fanout *MarkerFanout, metrics domrepo.Metrics) *KafkaMarkersHandler {
	return &KafkaMarkersHandler{topic: topic, fanout: fanout, metrics: metrics}
}

func (h *KafkaMarkersHandler) Topic() string { return h.topic }

// incoming message schema matches POST /api/markers
func (h *KafkaMarkersHandler) Handle(ctx context.Context, b []byte) error {
	var req models.MarkersRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(err)
	}
	if err := validate.StructCtx(ctx, &req); err != nil {
		h.metrics.RecordError("consumer_invalid")
		return pkgkafka.Permanent(err)
	}
	_, err := h.fanout.Publish(ctx, req)
	return err
}

var _ pkgkafka.MessageHandler = (*KafkaMarkersHandler)(nil)
