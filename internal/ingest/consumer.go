package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rulify/internal/config"
	"rulify/internal/metrics"
	"rulify/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Engine is the evaluation entry point the consumer feeds observations into.
type Engine interface {
	EvaluateAndTrigger(ctx context.Context, entityType, entityID, metricType string, currentValue float64) ([]models.RuleExecution, error)
}

// MetricObservation 从 Kafka 消费的一次指标观测
type MetricObservation struct {
	EntityType string  `json:"entity_type"`
	EntityID   string  `json:"entity_id"`
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
}

// Consumer reads metric observations from Kafka and drives rule evaluation.
// It is pure glue: scheduling and production of observations stay external.
type Consumer struct {
	reader *kafka.Reader
	engine Engine
	logger *logrus.Logger
}

// NewConsumer 创建指标观测消费者
func NewConsumer(cfg config.KafkaConfig, engine Engine, logger *logrus.Logger) *Consumer {
	if logger == nil {
		logger = logrus.New()
	}

	startOffset := kafka.LastOffset
	if cfg.StartOffset == "first" {
		startOffset = kafka.FirstOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: startOffset,
	})

	return &Consumer{
		reader: reader,
		engine: engine,
		logger: logger,
	}
}

// Run consumes observations until ctx is cancelled. Malformed messages are
// counted and skipped; evaluation errors are logged but never stop the loop.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Infof("ingest: consuming metric observations from topic %s", c.reader.Config().Topic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		obs, err := parseObservation(msg.Value)
		if err != nil {
			metrics.IngestMessagesTotal.WithLabelValues("rejected").Inc()
			c.logger.Warnf("ingest: invalid observation at offset %d: %v", msg.Offset, err)
		} else {
			_, err := c.engine.EvaluateAndTrigger(ctx, obs.EntityType, obs.EntityID, obs.MetricType, obs.Value)
			if err != nil {
				metrics.IngestMessagesTotal.WithLabelValues("failed").Inc()
				c.logger.Errorf("ingest: evaluation failed for %s/%s %s: %v", obs.EntityType, obs.EntityID, obs.MetricType, err)
			} else {
				metrics.IngestMessagesTotal.WithLabelValues("processed").Inc()
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Warnf("ingest: commit failed at offset %d: %v", msg.Offset, err)
		}
	}
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func parseObservation(data []byte) (*MetricObservation, error) {
	var obs MetricObservation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("decode observation: %w", err)
	}
	if obs.EntityType == "" || obs.EntityID == "" || obs.MetricType == "" {
		return nil, fmt.Errorf("entity_type, entity_id and metric_type are required")
	}
	return &obs, nil
}
