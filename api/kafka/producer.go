package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	workerkafka "docOptimizer/worker/kafka"
)

type Producer interface {
	SendDocumentMessage(ctx context.Context, topic string, message *workerkafka.DocumentMessage) error
	Close() error
}

type producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return newProducer(p), nil
}

func newProducer(p sarama.SyncProducer) *producer {
	return &producer{producer: p}
}

func (p *producer) SendDocumentMessage(ctx context.Context, topic string, message *workerkafka.DocumentMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(message.DocumentID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *producer) Close() error {
	return p.producer.Close()
}
