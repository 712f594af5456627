package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"SPI/internal/domain/models"
	domrepo "SPI/internal/domain/repository"
	xhttp "SPI/pkg/http"
	pkgkafka "SPI/pkg/kafka"
	applogger "SPI/pkg/logger"
)

// Predictor is the part of the recommender use case the handler drives.
type Predictor interface {
	Predict(ctx context.Context, req *models.PredictionRequest) (models.PredictionResult, error)
}

// PredictionHandler consumes PredictionRequest messages and prices them the
// same way POST /predict does. Results flow out through the use case's
// event publisher.
type PredictionHandler struct {
	topic   string
	uc      Predictor
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewPredictionHandler(topic string, uc Predictor, metrics domrepo.Metrics, logger *applogger.Logger) *PredictionHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &PredictionHandler{topic: topic, uc: uc, metrics: metrics, logger: logger}
}

func (h *PredictionHandler) Topic() string { return h.topic }

// Handle rejects undecodable and invalid payloads as permanent failures.
func (h *PredictionHandler) Handle(ctx context.Context, b []byte) error {
	var req models.PredictionRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode prediction request: %w", err))
	}
	if err := xhttp.ValidateStruct(ctx, &req); err != nil {
		h.metrics.RecordError("consumer_validate")
		details := xhttp.ValidationDetails(err)
		return pkgkafka.Permanent(fmt.Errorf("invalid prediction request: %s", details[0].Message))
	}

	res, err := h.uc.Predict(ctx, &req)
	if err != nil {
		h.metrics.RecordError("consumer_predict")
		return fmt.Errorf("predict: %w", err)
	}

	h.logger.Debug("kafka prediction",
		applogger.String("trace_id", pkgkafka.TraceID(ctx)),
		applogger.String("sku", req.Product.SKU),
		applogger.Float64("recommended_price", res.RecommendedPrice),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*PredictionHandler)(nil)

// Hooks stamps each message with a trace id and start time, and records
// handling latency and failures.
func Hooks(metrics domrepo.Metrics, logger *applogger.Logger) pkgkafka.ConsumerHook {
	tracing := pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			id := pkgkafka.ExtractTraceID(km)
			if id == "" {
				id = uuid.NewString()
			}
			ctx = pkgkafka.WithTraceID(ctx, id)
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			return ctx, km, data, nil
		},
	}
	observe := pkgkafka.HookFuncs{
		After: func(ctx context.Context, topic string, _ kafkago.Message, _ []byte, err error) {
			if start, ok := pkgkafka.StartTime(ctx); ok && err == nil {
				metrics.RecordLatency("consume_"+topic, time.Since(start).Seconds())
			}
		},
		Err: func(ctx context.Context, topic string, km kafkago.Message, _ []byte, err error) {
			logger.Warn("kafka message failed",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.String("trace_id", pkgkafka.TraceID(ctx)),
				applogger.Bool("permanent", pkgkafka.IsPermanent(err)),
				applogger.Error(err),
			)
		},
	}
	return pkgkafka.NewHookChain(tracing, observe)
}
