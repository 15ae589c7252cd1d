package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/bytedance/sonic"
)

var (
	// ErrMalformed marks lines that are not a JSON object with a string type.
	ErrMalformed = errors.New("malformed control message")
	// ErrUnknownType marks well-formed messages with an unrecognized type.
	ErrUnknownType = errors.New("unknown control message type")
	// ErrInvalid marks recognized messages whose fields fail validation.
	ErrInvalid = errors.New("invalid control message")
)

// Decode parses a single control line. Surrounding whitespace, including a
// trailing carriage return, is ignored.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	var fields map[string]interface{}
	if err := sonic.ConfigStd.Unmarshal(line, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	typ, ok := fields["type"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch Type(typ) {
	case TypeInit:
		return decodeInit(fields), nil
	case TypeInput:
		data, ok := fields["data"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: input data must be a string", ErrInvalid)
		}
		return Input{Data: data}, nil
	case TypeResize:
		cols, colsOK := dimension(fields["cols"])
		rows, rowsOK := dimension(fields["rows"])
		if !colsOK || !rowsOK {
			return nil, fmt.Errorf("%w: resize %v x %v", ErrInvalid, fields["cols"], fields["rows"])
		}
		return Resize{Cols: cols, Rows: rows}, nil
	case TypeClose:
		return Close{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

// decodeInit is lenient: each field that is missing or of the wrong shape is
// left at its zero value so the session falls back to the default.
func decodeInit(fields map[string]interface{}) Init {
	var msg Init

	msg.Shell, _ = fields["shell"].(string)
	msg.Cwd, _ = fields["cwd"].(string)

	if raw, ok := fields["args"].([]interface{}); ok {
		args := make([]string, 0, len(raw))
		for _, v := range raw {
			s, ok := v.(string)
			if !ok {
				args = nil
				break
			}
			args = append(args, s)
		}
		msg.Args = args
	}

	if cols, ok := dimension(fields["cols"]); ok {
		msg.Cols = cols
	}
	if rows, ok := dimension(fields["rows"]); ok {
		msg.Rows = rows
	}

	return msg
}

// dimension accepts finite numbers whose integer part is in [1, MaxDimension].
func dimension(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	n := math.Trunc(f)
	if n < 1 || n > MaxDimension {
		return 0, false
	}
	return int(n), true
}
