package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/taiwan-data-etl/internal/config"
	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// batchSize bounds a single WriteMessages call.
const batchSize = 500

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces normalized earthquakes to a Kafka topic.
// It implements pipeline.Loader[domain.QuakeTable].
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: cfg.KafkaTopic, logger: logger}
}

// Kind labels the output for run metrics.
func (w *Writer) Kind() string { return "kafka" }

// Load serializes and publishes every quake, batching WriteMessages calls.
// Messages are keyed by the quake ID so reruns land on the same partition.
func (w *Writer) Load(ctx context.Context, quakes domain.QuakeTable) error {
	if len(quakes) == 0 {
		return nil
	}
	for start := 0; start < len(quakes); start += batchSize {
		end := min(start+batchSize, len(quakes))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(quakes[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write to %s: %w", w.topic, err)
		}
	}
	w.logger.Info("published quakes", "topic", w.topic, "count", len(quakes))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Quake into a Kafka message.
func serializeToMessage(q domain.Quake) (kafkago.Message, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize quake: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(q.ID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "year", Value: []byte(strconv.Itoa(q.Year))},
			{Key: "origin_time", Value: []byte(q.Time.Format(time.RFC3339))},
		},
	}, nil
}
