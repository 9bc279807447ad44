package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"dapurlima/backend/internal/xid"
)

// Envelope is one locally committed mutation on its way to the remote
// event store.
type Envelope struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	OutletID  string    `json:"outlet_id"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// Queue pushes envelopes to a Sender from a single background worker.
// Local state is authoritative: a failed send is logged once and dropped,
// never retried and never rolled back. The operator's register stays
// correct; the cloud catches up on the next full refresh.
type Queue struct {
	sender Sender
	ch     chan Envelope
	wg     sync.WaitGroup

	mu     sync.Mutex
	failed int
}

func NewQueue(sender Sender, buffer int) *Queue {
	if sender == nil {
		sender = NoopSender{}
	}
	if buffer < 1 {
		buffer = 64
	}
	q := &Queue{
		sender: sender,
		ch:     make(chan Envelope, buffer),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Enqueue never blocks the caller. A full buffer counts as a sync failure:
// the envelope is dropped with a warning, same contract as a failed send.
func (q *Queue) Enqueue(kind string, outletID string, payload any) {
	env := Envelope{
		ID:        xid.New("sync"),
		Kind:      kind,
		OutletID:  outletID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	select {
	case q.ch <- env:
	default:
		q.markFailed()
		log.Printf("[cloudsync] WARN: buffer full, dropping %s envelope %s; local state kept, refresh later", kind, env.ID)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for env := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := q.sender.Send(ctx, env)
		cancel()
		if err != nil {
			q.markFailed()
			log.Printf("[cloudsync] WARN: sync failed for %s envelope %s: %v; local state kept, refresh later", env.Kind, env.ID, err)
		}
	}
}

func (q *Queue) markFailed() {
	q.mu.Lock()
	q.failed++
	q.mu.Unlock()
}

// FailedCount reports how many envelopes never reached the remote store
// since startup. Surfaced on /healthz as a non-blocking warning signal.
func (q *Queue) FailedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failed
}

// Close drains the buffer and stops the worker.
func (q *Queue) Close() error {
	close(q.ch)
	q.wg.Wait()
	return nil
}

type NoopSender struct{}

func (NoopSender) Send(_ context.Context, _ Envelope) error { return nil }

// HTTPSender posts envelopes as JSON to a remote sync endpoint.
type HTTPSender struct {
	url    string
	client *http.Client
}

func NewHTTPSender(url string) *HTTPSender {
	return &HTTPSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSender) Send(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sync endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
