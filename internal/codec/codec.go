// Package codec implements Component A: encoding and decoding gateway
// frames under either text-JSON or binary msgpack ("binary-term") wire
// encoding.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/emberlink/gatewire/internal/wire"
	"github.com/vmihailenco/msgpack/v5"
)

// Mode selects the wire encoding.
type Mode int

const (
	ModeJSON Mode = iota
	ModeBinary
)

func (m Mode) String() string {
	if m == ModeBinary {
		return "binary-term"
	}
	return "text-json"
}

// Codec encodes and decodes gateway frames.
//
// Decode reports malformed input as a non-fatal *DecodeError so callers can
// turn it into a warn-class notification instead of tearing down the
// connection (§4.A).
type Codec struct {
	mode Mode
}

// New constructs a Codec for the given mode.
func New(mode Mode) *Codec {
	return &Codec{mode: mode}
}

// Mode reports the configured wire encoding.
func (c *Codec) Mode() Mode { return c.mode }

// Encode serializes a frame per the configured mode.
func (c *Codec) Encode(f *wire.Frame) ([]byte, error) {
	switch c.mode {
	case ModeBinary:
		b, err := msgpack.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encode msgpack frame: %w", err)
		}
		return b, nil
	default:
		b, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encode json frame: %w", err)
		}
		return b, nil
	}
}

// DecodeError reports a non-fatal decode failure (§4.A: decode errors are
// non-fatal at the codec layer).
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode frame: %v", e.Cause) }
func (e *DecodeError) Unwrap() error { return e.Cause }

// Decode parses a contiguous byte buffer into a frame according to the
// configured mode. A nil frame with a nil error means "no frame yet" and is
// only returned by DecodeInbound, not by Decode itself — Decode always
// either produces a frame or a *DecodeError.
func (c *Codec) Decode(raw []byte) (*wire.Frame, error) {
	var f wire.Frame
	switch c.mode {
	case ModeBinary:
		if err := msgpack.Unmarshal(raw, &f); err != nil {
			return nil, &DecodeError{Cause: err}
		}
	default:
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, &DecodeError{Cause: err}
		}
	}
	return &f, nil
}

// DecodeChunks concatenates a sequence of byte chunks (in order) before
// decoding, per §4.A's "sequence of byte chunks" input form.
func (c *Codec) DecodeChunks(chunks [][]byte) (*wire.Frame, error) {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	buf := make([]byte, 0, total)
	for _, chunk := range chunks {
		buf = append(buf, chunk...)
	}
	return c.Decode(buf)
}

// Inflater feeds compressed bytes to a streaming decompressor and reports a
// completed inflated frame, if the trailing marker was seen. It is the
// minimal surface Codec needs from Component B; the concrete implementation
// lives in package inflate.
type Inflater interface {
	Feed(chunk []byte) (frame []byte, complete bool, err error)
}

// DecodeInbound implements the full §4.A decode path: when compression is
// configured and the bytes are not already inflated, the raw bytes are
// handed to the Stream Decompressor first. It returns (nil, nil) for "no
// frame yet" — a complete marker has not been seen — which is not an error.
func (c *Codec) DecodeInbound(raw []byte, alreadyInflated bool, decomp Inflater) (*wire.Frame, error) {
	if decomp != nil && !alreadyInflated {
		inflated, complete, err := decomp.Feed(raw)
		if err != nil {
			return nil, err
		}
		if !complete {
			return nil, nil
		}
		raw = inflated
	}
	return c.Decode(raw)
}
