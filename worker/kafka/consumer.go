package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"docOptimizer/worker/pool"
)

type MessageHandler func(ctx context.Context, msg *DocumentMessage) error

// DocumentMessage announces a raw upload waiting in object storage.
type DocumentMessage struct {
	DocumentID  string `json:"document_id"`
	TraceID     string `json:"trace_id"`
	Category    string `json:"category"`
	ContentType string `json:"content_type"`
	RawKey      string `json:"raw_key"`
}

type Consumer struct {
	consumer sarama.ConsumerGroup
	jobs     *pool.WorkerPool
	logger   *zap.Logger
}

// NewConsumer joins groupID. Messages are handled on jobs, which must not be
// the pool the handler itself submits compression work to.
func NewConsumer(brokers []string, groupID string, jobs *pool.WorkerPool, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	c, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c, jobs: jobs, logger: logger}, nil
}

type consumerHandler struct {
	fn     MessageHandler
	jobs   *pool.WorkerPool
	logger *zap.Logger
}

// inflight is a message handed to the pool. done closes once its handler
// has returned.
type inflight struct {
	msg  *sarama.ConsumerMessage
	done chan struct{}
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim runs messages of one partition concurrently on the job pool
// and marks them strictly in offset order, each only after its handler has
// finished. Once the session ends nothing further is marked, so unfinished
// messages are redelivered.
func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	queue := make(chan inflight, h.jobs.Size())
	marked := make(chan struct{})

	go func() {
		defer close(marked)
		stopped := false
		for job := range queue {
			if stopped {
				continue
			}
			select {
			case <-job.done:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				stopped = true
				continue
			}
			session.MarkMessage(job.msg, "")
		}
	}()

	for msg := range claim.Messages() {
		job := inflight{msg: msg, done: make(chan struct{})}
		h.jobs.Submit(ctx, func(ctx context.Context) {
			defer close(job.done)
			h.handle(ctx, msg)
		})
		queue <- job
	}

	close(queue)
	<-marked
	return nil
}

func (h *consumerHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) {
	var docMsg DocumentMessage
	if err := json.Unmarshal(msg.Value, &docMsg); err != nil {
		h.logger.Error("Malformed document message",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}
	if err := h.fn(ctx, &docMsg); err != nil {
		h.logger.Error("Document job failed",
			zap.String("document_id", docMsg.DocumentID),
			zap.String("trace_id", docMsg.TraceID),
			zap.Error(err),
		)
	}
}

// Consume joins the group and blocks until ctx ends. Rebalances restart
// the session.
func (c *Consumer) Consume(ctx context.Context, topic string, handler MessageHandler) error {
	h := &consumerHandler{fn: handler, jobs: c.jobs, logger: c.logger}
	c.logger.Info("Joining consumer group",
		zap.String("topic", topic),
		zap.Int("workers", c.jobs.Size()),
	)
	for {
		if err := c.consumer.Consume(ctx, []string{topic}, h); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
