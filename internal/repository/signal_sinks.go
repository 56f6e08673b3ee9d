package repository

import (
	"context"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	pkgkafka "CoinPulse/pkg/kafka"
)

// KafkaSignalSink publishes every calculated signal to a Kafka topic for
// downstream consumers, keyed by symbol so one symbol's signals stay ordered
// within a partition.
type KafkaSignalSink struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSignalSink creates a Kafka-backed signal sink.
func NewKafkaSignalSink(producer *pkgkafka.Producer, topic string) drepo.SignalSink {
	return &KafkaSignalSink{producer: producer, topic: topic}
}

func (k *KafkaSignalSink) Publish(ctx context.Context, sig *models.CalculatedSignal) error {
	if sig == nil {
		return nil
	}
	return k.producer.Publish(ctx, k.topic, []byte(sig.Symbol), sig)
}

func (k *KafkaSignalSink) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}

// MultiSink fans one publish out to several sinks. A failing sink does not
// stop the others; the first error is returned.
type MultiSink struct {
	sinks []drepo.SignalSink
}

// NewMultiSink composes sinks; nil entries are skipped.
func NewMultiSink(sinks ...drepo.SignalSink) *MultiSink {
	out := make([]drepo.SignalSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

func (m *MultiSink) Publish(ctx context.Context, sig *models.CalculatedSignal) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, sig); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ drepo.SignalSink = (*MultiSink)(nil)
