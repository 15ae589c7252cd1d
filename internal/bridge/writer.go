package bridge

import (
	"io"
	"sync"
)

// ptyWriter forwards input to the pty from its own goroutine so a shell that
// stops reading never stalls the event loop. The queue is unbounded.
type ptyWriter struct {
	w    io.Writer
	errs chan<- error
	done <-chan struct{}

	mu      sync.Mutex
	pending [][]byte
	wake    chan struct{}
}

func newPTYWriter(w io.Writer, errs chan<- error, done <-chan struct{}) *ptyWriter {
	return &ptyWriter{
		w:    w,
		errs: errs,
		done: done,
		wake: make(chan struct{}, 1),
	}
}

// Enqueue schedules p for writing. It never blocks.
func (q *ptyWriter) Enqueue(p []byte) {
	q.mu.Lock()
	q.pending = append(q.pending, p)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run writes queued input in order until done closes or a write fails. The
// first failure is reported once and the writer stops.
func (q *ptyWriter) run() {
	for {
		select {
		case <-q.wake:
		case <-q.done:
			return
		}

		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			p := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()

			if _, err := q.w.Write(p); err != nil {
				select {
				case q.errs <- err:
				case <-q.done:
				}
				return
			}
		}
	}
}
