package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

func TestLocalQueueDeliversMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewLocalQueue(8, 3, nil)
	received := make(chan domain.QueueMessage, 1)

	go func() {
		_ = q.Consume(ctx, func(_ context.Context, message domain.QueueMessage) error {
			received <- message
			return nil
		})
	}()

	sent := domain.QueueMessage{JobID: "job-1", RequestedAt: time.Now().UTC()}
	if err := q.Enqueue(ctx, sent); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	select {
	case got := <-received:
		if got.JobID != sent.JobID {
			t.Fatalf("expected job %q, got %q", sent.JobID, got.JobID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestLocalQueueMovesExhaustedMessagesToDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewLocalQueue(8, 2, nil)
	attempts := make(chan struct{}, 8)

	go func() {
		_ = q.Consume(ctx, func(_ context.Context, _ domain.QueueMessage) error {
			attempts <- struct{}{}
			return errors.New("handler failure")
		})
	}()

	if err := q.Enqueue(ctx, domain.QueueMessage{JobID: "job-dlq", RequestedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for attempt %d", i+1)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for q.DLQSize() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("message never reached DLQ")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
