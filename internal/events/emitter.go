package events

import (
	"context"
	"sync"
	"time"

	kafkax "github.com/ariefcatur/marketplace-core/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaEmitter struct {
	Producer *kafkax.Producer
	Service  string
}

func (e *KafkaEmitter) Emit(_ context.Context, ev Event) {
	payload := kafkax.MustMarshal(ev.Payload)
	for _, uid := range recipients(ev.Recipients) {
		env := Envelope{
			EventID:       uuid.NewString(),
			EventType:     ev.Type,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      e.Service,
			CorrelationID: ev.CorrelationID,
			Recipient:     uid,
			Payload:       payload,
		}
		e.Producer.Publish(ev.Topic, []byte(uid), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(ev.Type)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}

// LogEmitter is used when no broker is configured.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, ev Event) {
	zap.L().Debug("event",
		zap.String("topic", ev.Topic),
		zap.String("type", ev.Type),
		zap.String("correlation_id", ev.CorrelationID),
		zap.Strings("recipients", recipients(ev.Recipients)),
	)
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// NewEmitter returns a Kafka-backed emitter, or a LogEmitter when no brokers
// are configured. stop flushes buffered messages and closes the writer.
func NewEmitter(ctx context.Context, brokers []string, service string) (em Emitter, stop func()) {
	if len(brokers) == 0 {
		return LogEmitter{}, func() {}
	}
	p := kafkax.NewProducer(brokers, 1024)
	p.Start(ctx)
	return &KafkaEmitter{Producer: p, Service: service}, func() {
		p.Close()
		p.WaitClosed()
	}
}
