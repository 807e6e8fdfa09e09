package notify

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
)

// KafkaPublisher writes messages to a topic with a synchronous producer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// NewSyncProducer connects a producer that waits for all in-sync replicas.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return p, nil
}

// Publish implements Publisher. The producer does not observe ctx.
func (p *KafkaPublisher) Publish(_ context.Context, m Message) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(AdminRoutingKey),
		Value: sarama.ByteEncoder(m.Bytes()),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
		Timestamp: m.SentAt,
	})
	if err != nil {
		return errors.Wrap(err, "kafka send")
	}
	return nil
}
