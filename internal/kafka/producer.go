package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer is an async writer fed through a buffered inbox. Publish never
// blocks the caller: when the inbox is full the message is dropped and
// logged.
type Producer struct {
	w     *kafka.Writer
	inbox chan kafka.Message
	stop  chan struct{}
	done  chan struct{}

	closeOnce sync.Once
}

// NewProducer builds a producer without a fixed topic; each message carries
// its own.
func NewProducer(brokers []string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			Async:                  true,
			Completion: func(msgs []kafka.Message, err error) {
				if err != nil {
					zap.L().Warn("kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
				}
			},
		},
		inbox: make(chan kafka.Message, buf),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case <-p.stop:
				p.drain()
				return
			case m := <-p.inbox:
				_ = p.w.WriteMessages(context.Background(), m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			_ = p.w.WriteMessages(context.Background(), m)
		default:
			if err := p.w.Close(); err != nil {
				zap.L().Warn("kafka writer close", zap.Error(err))
			}
			return
		}
	}
}

func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
	default:
		zap.L().Warn("kafka inbox full, dropping message", zap.String("topic", topic), zap.ByteString("key", key))
	}
}

// Close asks the loop to flush remaining messages and close the writer.
func (p *Producer) Close() { p.closeOnce.Do(func() { close(p.stop) }) }

// WaitClosed blocks until the loop has exited.
func (p *Producer) WaitClosed() { <-p.done }
