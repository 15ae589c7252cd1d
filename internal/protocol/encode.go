package protocol

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// ErrEncoderBroken is returned by every write after a previous write failed.
var ErrEncoderBroken = errors.New("event stream broken by earlier write failure")

// Encoder writes outbound events, one JSON object per line.
type Encoder struct {
	mu     sync.Mutex
	w      io.Writer
	broken bool
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteOutput emits an output event. Each invalid UTF-8 byte is replaced
// with U+FFFD.
func (e *Encoder) WriteOutput(data []byte) error {
	return e.write(OutputEvent{
		Type: TypeOutput,
		Data: validUTF8(data),
	})
}

// WriteExit emits the exit event.
func (e *Encoder) WriteExit(exitCode *int, signal *string) error {
	return e.write(ExitEvent{
		Type:     TypeExit,
		ExitCode: exitCode,
		Signal:   signal,
	})
}

// WriteError emits an error event.
func (e *Encoder) WriteError(message string) error {
	return e.write(ErrorEvent{
		Type:    TypeError,
		Message: message,
	})
}

func (e *Encoder) write(event interface{}) error {
	payload, err := sonic.ConfigStd.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	payload = append(payload, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.broken {
		return ErrEncoderBroken
	}
	if _, err := e.w.Write(payload); err != nil {
		e.broken = true
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func validUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 2*utf8.UTFMax)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}
