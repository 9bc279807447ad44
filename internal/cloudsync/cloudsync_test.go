package cloudsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Envelope
	err  error
}

func (s *recordingSender) Send(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, env)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestQueueDeliversEnvelopes(t *testing.T) {
	sender := &recordingSender{}
	queue := NewQueue(sender, 8)

	queue.Enqueue("sale", "outlet-pusat", map[string]string{"id": "tx-1"})
	queue.Enqueue("purchase", "outlet-pusat", map[string]string{"id": "pur-1"})
	if err := queue.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if sender.count() != 2 {
		t.Fatalf("expected 2 delivered envelopes, got %d", sender.count())
	}
	if queue.FailedCount() != 0 {
		t.Fatalf("expected no failures, got %d", queue.FailedCount())
	}
}

func TestQueueCountsFailedSends(t *testing.T) {
	sender := &recordingSender{err: errors.New("remote down")}
	queue := NewQueue(sender, 8)

	queue.Enqueue("sale", "outlet-pusat", nil)
	queue.Enqueue("expense", "outlet-pusat", nil)
	if err := queue.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if queue.FailedCount() != 2 {
		t.Fatalf("expected 2 failures, got %d", queue.FailedCount())
	}
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	// A sender blocked forever keeps the worker busy so the buffer fills up.
	block := make(chan struct{})
	defer close(block)
	sender := senderFunc(func(ctx context.Context, _ Envelope) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})

	queue := NewQueue(sender, 1)
	for i := 0; i < 5; i++ {
		queue.Enqueue("sale", "outlet-pusat", nil)
	}

	// Worker holds one envelope, buffer holds one; the rest were dropped.
	if queue.FailedCount() < 2 {
		t.Fatalf("expected dropped envelopes to count as failures, got %d", queue.FailedCount())
	}
}

type senderFunc func(ctx context.Context, env Envelope) error

func (f senderFunc) Send(ctx context.Context, env Envelope) error { return f(ctx, env) }

func TestHTTPSenderPostsJSON(t *testing.T) {
	received := make(chan Envelope, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		received <- Envelope{}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	err := sender.Send(context.Background(), Envelope{ID: "sync-1", Kind: "sale", OutletID: "outlet-pusat"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	<-received
}

func TestHTTPSenderRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.Send(context.Background(), Envelope{ID: "sync-1"}); err == nil {
		t.Fatalf("expected error for 502 response")
	}
}
