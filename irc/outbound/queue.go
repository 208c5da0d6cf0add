// Package outbound queues raw lines for the connection so callers holding
// locks never wait on the network.
package outbound

import (
	"errors"
	"sync"

	"github.com/fluffle/goirc/logging"
	"golang.org/x/sync/singleflight"
)

var ErrClosed = errors.New("outbound queue closed")

// RawWriter writes a raw protocol line, *client.Conn implements it.
type RawWriter interface {
	Raw(line string)
}

type request struct {
	line string
	done chan struct{}
}

// Queue writes lines to a RawWriter from a single goroutine. Identical lines
// that are still queued or being written are sent only once.
type Queue struct {
	w      RawWriter
	flight singleflight.Group
	lines  chan request

	closeOnce sync.Once
	closed    chan struct{}
	stopped   chan struct{}
}

// NewQueue starts a queue holding up to size lines.
func NewQueue(w RawWriter, size int) *Queue {
	if w == nil {
		panic("outbound: writer must not be nil")
	}
	if size < 1 {
		size = 1
	}
	q := &Queue{
		w:       w,
		lines:   make(chan request, size),
		closed:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		select {
		case <-q.closed:
			return
		case r := <-q.lines:
			logging.Debug("Sending %q", r.line)
			q.w.Raw(r.line)
			// Once written the line may be sent again, even while its
			// flight is still winding down.
			q.flight.Forget(r.line)
			close(r.done)
		}
	}
}

// SendAvoidingDuplication queues line unless the same line is already
// pending. It never blocks.
func (q *Queue) SendAvoidingDuplication(line string) {
	select {
	case <-q.closed:
		logging.Warn("Dropping %q: %v", line, ErrClosed)
		return
	default:
	}
	// The result channel is not needed, the flight only exists to collapse
	// duplicates until the line has been written.
	q.flight.DoChan(line, func() (interface{}, error) {
		r := request{line: line, done: make(chan struct{})}
		select {
		case q.lines <- r:
		case <-q.closed:
			return nil, ErrClosed
		}
		select {
		case <-r.done:
			return nil, nil
		case <-q.closed:
			return nil, ErrClosed
		}
	})
}

// Close stops the queue, lines not yet written are dropped.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	<-q.stopped
}
