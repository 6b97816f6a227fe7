package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finreport/internal/log"
)

type ackResult struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcker struct {
	mu      sync.Mutex
	results []ackResult
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, ackResult{tag: tag, acked: true})
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, ackResult{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestConsumeLoop(t *testing.T) {
	acker := &fakeAcker{}
	msgs := make(chan amqp091.Delivery, 4)
	body := func(id string) []byte {
		return []byte(fmt.Sprintf(`{"id":%q,"operation":"category_totals","name":"r.json","payload":[]}`, id))
	}
	msgs <- amqp091.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: body("ok")}
	msgs <- amqp091.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte("{not json")}
	msgs <- amqp091.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: body("transient")}
	msgs <- amqp091.Delivery{Acknowledger: acker, DeliveryTag: 4, Body: body("poison")}
	close(msgs)

	var seen []string
	handler := func(ctx context.Context, msg *ReportMessage) error {
		seen = append(seen, msg.ID)
		switch msg.ID {
		case "transient":
			return errors.New("database locked")
		case "poison":
			return fmt.Errorf("%w: bad payload", ErrDiscard)
		}
		return nil
	}

	err := consumeLoop(context.Background(), msgs, handler, log.Discard())
	if err == nil || err.Error() != "message channel closed" {
		t.Fatalf("expected channel closed error, got %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("handler saw %v", seen)
	}

	want := []ackResult{
		{tag: 1, acked: true},
		{tag: 2, requeue: false},
		{tag: 3, requeue: true},
		{tag: 4, requeue: false},
	}
	if len(acker.results) != len(want) {
		t.Fatalf("got %d acknowledgements, want %d", len(acker.results), len(want))
	}
	for i, w := range want {
		if acker.results[i] != w {
			t.Errorf("delivery %d: got %+v, want %+v", i+1, acker.results[i], w)
		}
	}
}

func TestConsumeLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan amqp091.Delivery)
	done := make(chan error, 1)
	go func() {
		done <- consumeLoop(ctx, msgs, func(context.Context, *ReportMessage) error { return nil }, log.Discard())
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consumeLoop did not stop")
	}
}
