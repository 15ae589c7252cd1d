package bridge

import (
	"time"
	"unicode/utf8"
)

// Trigger records why a flush happened.
type Trigger string

const (
	TriggerTimer Trigger = "timer"
	TriggerSize  Trigger = "size"
	TriggerFinal Trigger = "final"
)

// Chunk is one flushed run of output.
type Chunk struct {
	Data    []byte
	Trigger Trigger
	// Delay is the time between the first byte of the cycle and the flush.
	Delay time.Duration
}

// EmitFunc receives each flushed chunk. Data is only valid during the call.
type EmitFunc func(Chunk) error

// Coalescer buffers pty output and flushes it on a deadline or a size cap.
// It is not safe for concurrent use; the bridge loop owns it.
type Coalescer struct {
	maxDelay time.Duration
	maxSize  int
	emit     EmitFunc

	buf     []byte
	started time.Time
	timer   *time.Timer
}

// NewCoalescer creates a coalescer flushing after maxDelay or at maxSize bytes.
func NewCoalescer(maxDelay time.Duration, maxSize int, emit EmitFunc) *Coalescer {
	return &Coalescer{
		maxDelay: maxDelay,
		maxSize:  maxSize,
		emit:     emit,
		buf:      make([]byte, 0, maxSize),
	}
}

// Write appends p to the buffer. Whenever the buffer reaches the cap it is
// flushed immediately, so a large p produces several chunks and the buffer
// never holds more than maxSize bytes.
func (c *Coalescer) Write(p []byte) error {
	for len(p) > 0 {
		if c.timer == nil {
			c.started = time.Now()
			c.timer = time.NewTimer(c.maxDelay)
		}

		n := min(c.maxSize-len(c.buf), len(p))
		c.buf = append(c.buf, p[:n]...)
		p = p[n:]

		if len(c.buf) >= c.maxSize {
			if err := c.flush(TriggerSize, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// C returns the channel the pending flush deadline fires on, or nil when no
// flush is pending. Receiving from it must be followed by Expire. A nil
// Coalescer never fires.
func (c *Coalescer) C() <-chan time.Time {
	if c == nil || c.timer == nil {
		return nil
	}
	return c.timer.C
}

// Expire flushes after the deadline fired.
func (c *Coalescer) Expire() error {
	return c.flush(TriggerTimer, false)
}

// Flush emits everything buffered, including an incomplete trailing UTF-8
// sequence. It is used once the pty has no more output to give.
func (c *Coalescer) Flush() error {
	return c.flush(TriggerFinal, true)
}

// Buffered returns the number of bytes waiting to be flushed.
func (c *Coalescer) Buffered() int {
	return len(c.buf)
}

// Stop cancels the pending deadline without flushing.
func (c *Coalescer) Stop() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coalescer) flush(trigger Trigger, final bool) error {
	delay := time.Since(c.started)
	c.Stop()

	n := len(c.buf)
	if !final {
		// A split multi-byte character waits for its continuation bytes. The
		// next Write re-arms the deadline and Flush emits it regardless. A
		// full buffer holding nothing else must still drain.
		if tail := incompleteTail(c.buf); tail < n || n < c.maxSize {
			n -= tail
		}
	}
	if n == 0 {
		return nil
	}

	err := c.emit(Chunk{Data: c.buf[:n], Trigger: trigger, Delay: delay})

	rest := copy(c.buf, c.buf[n:])
	c.buf = c.buf[:rest]
	return err
}

// incompleteTail returns the length of a trailing UTF-8 sequence that is
// missing continuation bytes, or 0.
func incompleteTail(b []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if utf8.FullRune(b[len(b)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}
