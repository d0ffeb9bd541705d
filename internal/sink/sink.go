// Package sink publishes admitted events to Kafka for offline
// analysis of what the pipeline actually played.
package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/signalsfoundry/orbit-sonifier/internal/logging"
	"github.com/signalsfoundry/orbit-sonifier/model"
)

// DefaultTopic is where admitted events land unless overridden.
const DefaultTopic = "sonifier.events"

// EventSink writes admitted events to a Kafka topic. Writes are async
// so a slow or absent broker never stalls the tick loop.
type EventSink struct {
	writer *kafka.Writer
	log    logging.Logger
}

// New builds a sink against the given brokers. Topic defaults to
// DefaultTopic when empty.
func New(brokers []string, topic string, log logging.Logger) *EventSink {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = logging.Noop()
	}
	return &EventSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(_ []kafka.Message, err error) {
				if err != nil {
					log.Warn(context.Background(), "event sink publish failed",
						logging.String("error", err.Error()))
				}
			},
		},
		log: log.With(logging.String("component", "event-sink")),
	}
}

// Publish is the engine observer hook. Marshals the event and hands it
// to the async writer; errors surface through the completion callback.
func (s *EventSink) Publish(ev model.AdmittedEvent) {
	if s == nil || s.writer == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.EntityName),
		Value: payload,
		Time:  ev.Time,
	})
	if err != nil {
		s.log.Warn(context.Background(), "event sink enqueue failed",
			logging.String("error", err.Error()))
	}
}

// Close flushes pending messages and releases the writer.
func (s *EventSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
