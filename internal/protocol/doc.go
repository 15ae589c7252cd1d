// Package protocol implements the bridge's line-delimited JSON wire format.
//
// Inbound control messages arrive one JSON object per line on stdin and are
// decoded into a closed set of variants: Init, Input, Resize and Close.
// Outbound events (output, exit, error) are written one per line on stdout.
//
// Decoding never panics and never terminates the caller: every rejected line
// comes back as an error wrapping ErrMalformed, ErrUnknownType or ErrInvalid,
// which callers are expected to drop.
package protocol
