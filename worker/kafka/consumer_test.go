package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docOptimizer/worker/pool"
)

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.marked)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "documents" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return int64(cap(c.messages)) }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func newClaim(t *testing.T, values ...[]byte) *fakeClaim {
	t.Helper()
	c := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(values))}
	for i, v := range values {
		c.messages <- &sarama.ConsumerMessage{Topic: "documents", Offset: int64(i), Value: v}
	}
	close(c.messages)
	return c
}

func encodeMessage(t *testing.T, id string) []byte {
	t.Helper()
	data, err := json.Marshal(DocumentMessage{DocumentID: id, RawKey: "raw/" + id})
	if err != nil {
		t.Fatalf("Failed to encode message: %v", err)
	}
	return data
}

func TestConsumeClaim_ConcurrentJobsMarkedInOrder(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	secondStarted := make(chan struct{})

	h := &consumerHandler{
		jobs:   pool.NewWorkerPool(2),
		logger: zap.New(core),
		fn: func(ctx context.Context, msg *DocumentMessage) error {
			switch msg.DocumentID {
			case "first":
				select {
				case <-secondStarted:
				case <-time.After(5 * time.Second):
					return errors.New("second job never started")
				}
			case "second":
				close(secondStarted)
			case "third":
				return errors.New("storage unavailable")
			}
			return nil
		},
	}

	session := &fakeSession{ctx: context.Background()}
	claim := newClaim(t,
		encodeMessage(t, "first"),
		encodeMessage(t, "second"),
		[]byte("{not json"),
		encodeMessage(t, "third"),
	)

	if err := h.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}

	want := []int64{0, 1, 2, 3}
	if got := session.markedOffsets(); !slices.Equal(got, want) {
		t.Errorf("Expected offsets %v marked, got %v", want, got)
	}
	if n := logs.FilterMessage("Malformed document message").Len(); n != 1 {
		t.Errorf("Expected 1 malformed message log, got %d", n)
	}
	failed := logs.FilterMessage("Document job failed").All()
	if len(failed) != 1 {
		t.Fatalf("Expected 1 failed job log, got %d", len(failed))
	}
	if id := failed[0].ContextMap()["document_id"]; id != "third" {
		t.Errorf("Expected failed document third, got %v", id)
	}
}

func TestConsumeClaim_EndedSessionMarksNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled []string
	var mu sync.Mutex
	h := &consumerHandler{
		jobs:   pool.NewWorkerPool(1),
		logger: zap.NewNop(),
		fn: func(ctx context.Context, msg *DocumentMessage) error {
			mu.Lock()
			handled = append(handled, msg.DocumentID)
			mu.Unlock()
			if msg.DocumentID == "first" {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		},
	}

	session := &fakeSession{ctx: ctx}
	claim := newClaim(t, encodeMessage(t, "first"), encodeMessage(t, "second"))

	done := make(chan error, 1)
	go func() { done <- h.ConsumeClaim(session, claim) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ConsumeClaim failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ConsumeClaim did not return after the session ended")
	}

	if got := session.markedOffsets(); len(got) != 0 {
		t.Errorf("Expected no offsets marked after the session ended, got %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Contains(handled, "first") {
		t.Errorf("Expected first message handled, got %v", handled)
	}
}
