package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter fans lines out to its sinks from a single goroutine. Write
// blocks only when the queue is full.
type asyncWriter struct {
	queue chan writeOp
	done  chan struct{}
	close sync.Once

	mu  sync.Mutex
	err error
}

// writeOp carries either a line or a flush request.
type writeOp struct {
	line  []byte
	flush chan error
}

func newAsyncWriter(sinks []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	bufs := make([]*bufio.Writer, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			bufs = append(bufs, bufio.NewWriterSize(s, bufSize))
		}
	}
	w := &asyncWriter{
		queue: make(chan writeOp, 256),
		done:  make(chan struct{}),
	}
	go w.loop(bufs)
	return w
}

func (w *asyncWriter) loop(bufs []*bufio.Writer) {
	defer close(w.done)
	flush := func() error {
		var errs []error
		for _, b := range bufs {
			errs = append(errs, b.Flush())
		}
		return errors.Join(errs...)
	}
	for op := range w.queue {
		if op.flush != nil {
			op.flush <- flush()
			continue
		}
		for _, b := range bufs {
			if _, err := b.Write(op.line); err != nil {
				w.fail(err)
			}
		}
		// Flush eagerly when idle so lines are not held back.
		if len(w.queue) == 0 {
			w.fail(flush())
		}
	}
	w.fail(flush())
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *asyncWriter) lastErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Write queues a copy of p.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.lastErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- writeOp{line: append([]byte(nil), p...)}
	return nil
}

// Flush waits until every queued line has reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	w.queue <- writeOp{flush: ack}
	return errors.Join(<-ack, w.lastErr())
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.close.Do(func() { close(w.queue) })
	<-w.done
	return w.lastErr()
}
