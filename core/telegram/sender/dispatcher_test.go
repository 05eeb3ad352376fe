package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherKeepsOrderWithOneWorker(t *testing.T) {
	d := NewDispatcher(Options{})
	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 20 {
		err := d.Enqueue(context.Background(), Job{Action: "send.text", Send: func() error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	d.Close()

	if len(got) != 20 {
		t.Fatalf("ran %d jobs, want 20", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), Job{Action: "send.text", Send: func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	}})
	d.Close()

	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if d.Failed() != 0 {
		t.Fatalf("failed = %d", d.Failed())
	}
}

func TestDispatcherDoesNotRetryAPIErrors(t *testing.T) {
	d := NewDispatcher(Options{MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), Job{Send: func() error {
		calls.Add(1)
		return &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
	}})
	d.Close()

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if d.Failed() != 1 {
		t.Fatalf("failed = %d, want 1", d.Failed())
	}
}

func TestDispatcherRunsAfterUpdateContextEnds(t *testing.T) {
	d := NewDispatcher(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := make(chan struct{})
	_ = d.Enqueue(ctx, Job{Send: func() error { close(ran); return nil }})
	d.Close()

	select {
	case <-ran:
	default:
		t.Fatal("job was dropped")
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), Job{Send: func() error { return nil }})
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1})
	block := make(chan struct{})
	started := make(chan struct{})
	_ = d.Enqueue(context.Background(), Job{Send: func() error { close(started); <-block; return nil }})
	<-started
	if err := d.Enqueue(context.Background(), Job{Send: func() error { return nil }}); err != nil {
		t.Fatalf("second job should fit the queue: %v", err)
	}
	err := d.Enqueue(context.Background(), Job{Send: func() error { return nil }})
	close(block)
	d.Close()
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnqueueRejectsNilSend(t *testing.T) {
	d := NewDispatcher(Options{})
	defer d.Close()
	if err := d.Enqueue(context.Background(), Job{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"timeout":  context.DeadlineExceeded,
		"dns":      &net.DNSError{Err: "no such host", Name: "api.telegram.org"},
		"dial":     &net.OpError{Op: "dial", Err: errors.New("refused")},
		"http_4xx": fmt.Errorf("send: %w", &tele.Error{Code: 403, Description: "Forbidden"}),
		"http_5xx": &tele.Error{Code: 502},
		"unknown":  errors.New("weird"),
	}
	for want, err := range cases {
		if got := Classify(err); got != want {
			t.Errorf("Classify(%v) = %q, want %q", err, got, want)
		}
	}
	if Classify(nil) != "" {
		t.Error("nil error must classify as empty")
	}
}
