package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	config := DefaultConfig("test")
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()

	msg := Message{TenantID: 1, ProjectID: 2, PromptID: 3, Version: 1, LogID: 42}
	if err := q.Enqueue(ctx, msg); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	msgs, err := q.Dequeue(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}

	if msgs[0] != msg {
		t.Errorf("Expected %+v, got %+v", msg, msgs[0])
	}
}

func TestMemoryQueue_MultipleBatch(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 5
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()

	for i := int64(0); i < 10; i++ {
		if err := q.Enqueue(ctx, Message{LogID: i}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	msgs, err := q.Dequeue(ctx, 5)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(msgs))
	}

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 5 {
		t.Errorf("Expected 5 remaining, got %d", length)
	}
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	start := time.Now()
	msgs, err := q.DequeueWithTimeout(ctx, 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected no messages, got %d", len(msgs))
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("Returned before timeout")
	}
}

func TestMemoryQueue_ConcurrentProducers(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 100
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = q.Enqueue(ctx, Message{LogID: int64(p*100 + i)})
			}
		}(p)
	}
	wg.Wait()

	msgs, err := q.Dequeue(ctx, 100)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(msgs) != 100 {
		t.Errorf("Expected 100 messages, got %d", len(msgs))
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	_ = q.Close()

	if err := q.Enqueue(context.Background(), Message{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()

	ctx := context.Background()

	msg := Message{TenantID: 1, LogID: 7, Attempts: 3}
	if err := dlq.Add(ctx, msg, errors.New("boom")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items, err := dlq.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].Message != msg {
		t.Errorf("Expected %+v, got %+v", msg, items[0].Message)
	}
	if items[0].Error != "boom" {
		t.Errorf("Expected error 'boom', got %q", items[0].Error)
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	items, _ = dlq.List(ctx, 10)
	if len(items) != 0 {
		t.Errorf("Expected empty DLQ, got %d items", len(items))
	}
}
