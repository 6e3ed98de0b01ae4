package hub

import (
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("outbound queue full")
	ErrQueueClosed = errors.New("outbound queue closed")
)

// Queue is a bounded, non-blocking Writer. A connection's writer
// goroutine drains Messages until Done is closed.
type Queue struct {
	messages  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

// NewQueue returns a queue holding up to size messages. onClose, if set,
// runs once when the queue is closed; handlers use it to close the
// underlying socket so the read loop unblocks.
func NewQueue(size int, onClose func()) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		messages: make(chan []byte, size),
		done:     make(chan struct{}),
		onClose:  onClose,
	}
}

func (q *Queue) Write(message []byte) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.messages <- message:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
		if q.onClose != nil {
			q.onClose()
		}
	})
	return nil
}

func (q *Queue) Messages() <-chan []byte { return q.messages }

func (q *Queue) Done() <-chan struct{} { return q.done }
