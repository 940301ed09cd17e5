package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// queueWriter hands log lines to a single goroutine that fans them out to
// every sink, so slow sinks never block the flow engine for long.
type queueWriter struct {
	lines   chan []byte
	flushes chan chan error
	stopped chan struct{}
	close   sync.Once

	mu    sync.Mutex
	sinks []*bufio.Writer
	err   error
}

const (
	queueDepth     = 256
	defaultBufSize = 64 << 10
)

func newQueueWriter(writers []io.Writer, bufSize int) *queueWriter {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	w := &queueWriter{
		lines:   make(chan []byte, queueDepth),
		flushes: make(chan chan error),
		stopped: make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *queueWriter) run() {
	defer close(w.stopped)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.fail(w.flushSinks())
				return
			}
			w.fail(w.emit(line))
		case ack := <-w.flushes:
			ack <- w.flushSinks()
		}
	}
}

// Write queues a copy of p. A full queue blocks the caller rather than
// dropping the line. The first sink error is sticky.
func (w *queueWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush blocks until everything queued before it reached the sinks.
func (w *queueWriter) Flush() error {
	if err := w.Err(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushes <- ack
	return <-ack
}

// Close drains the queue and stops the writer goroutine.
func (w *queueWriter) Close() error {
	w.close.Do(func() { close(w.lines) })
	<-w.stopped
	return w.Err()
}

func (w *queueWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *queueWriter) emit(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *queueWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	errs := make([]error, 0, len(w.sinks))
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}

func (w *queueWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
