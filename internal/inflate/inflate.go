// Package inflate implements Component B: a streaming zlib decompressor
// that buffers compressed chunks and emits a complete inflated frame once
// the buffer ends with the configured end-of-frame marker.
//
// The gateway's "zlib-stream" compression runs one continuous deflate
// stream for the life of the connection: the compressor emits a zlib header
// only on the very first frame, then keeps reusing its sliding-window
// dictionary and issues a sync-flush (a byte-aligned empty stored block,
// which serializes as the four bytes below) at the end of every logical
// frame. A decoder therefore cannot simply open a fresh zlib reader per
// frame after the first one — frames after the first are raw deflate
// continuations with no header of their own. This implementation carries
// the sliding-window dictionary forward across frames instead of keeping a
// single long-lived reader goroutine alive, which keeps Feed synchronous
// and lock-free.
package inflate

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// Marker is the four-byte zlib-stream end-of-frame sentinel: a byte-aligned
// empty stored deflate block, the signature Go's (and zlib's) sync flush
// produces.
var Marker = [4]byte{0x00, 0x00, 0xff, 0xff}

// maxDictWindow is deflate's maximum sliding-window size.
const maxDictWindow = 32 * 1024

// Decompressor accumulates compressed bytes across arbitrary chunk
// boundaries and inflates a complete payload when the marker is detected.
//
// It is not safe for concurrent use; the engine's single-threaded actor
// loop is the only caller.
type Decompressor struct {
	buf     []byte
	dict    []byte
	started bool
}

// New creates an empty Decompressor.
func New() *Decompressor {
	return &Decompressor{}
}

// Feed appends chunk to the internal buffer. If the buffer now ends with
// Marker, the accumulated bytes are inflated into a single frame and the
// buffer is reset; complete reports whether a frame was produced.
//
// Feed tolerates the marker landing anywhere relative to chunk boundaries:
// the check is against the buffer's trailing bytes, not the chunk's, so a
// marker split across two Feed calls is still detected once both halves are
// buffered.
func (d *Decompressor) Feed(chunk []byte) (frame []byte, complete bool, err error) {
	d.buf = append(d.buf, chunk...)
	if !hasTrailingMarker(d.buf) {
		return nil, false, nil
	}

	payload := d.buf
	d.buf = nil

	var out []byte
	if !d.started {
		zr, openErr := zlib.NewReader(bytes.NewReader(payload))
		if openErr != nil {
			return nil, false, fmt.Errorf("inflate: open zlib stream: %w", openErr)
		}
		out, err = io.ReadAll(zr)
		zr.Close()
		// A sync-flushed frame ends mid-stream (no final block), so the
		// reader reports io.ErrUnexpectedEOF after yielding all of its bytes.
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, false, fmt.Errorf("inflate: read zlib stream: %w", err)
		}
		d.started = true
	} else {
		fr := flate.NewReaderDict(bytes.NewReader(payload), d.dict)
		out, err = io.ReadAll(fr)
		fr.Close()
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, false, fmt.Errorf("inflate: read flate continuation: %w", err)
		}
	}

	d.dict = slideWindow(d.dict, out)
	return out, true, nil
}

// Reset discards any partial buffer and re-initializes the inflate context
// (the carried-forward sliding-window dictionary). Required after any
// disconnect, since the next connection starts its own fresh zlib stream.
func (d *Decompressor) Reset() {
	d.buf = nil
	d.dict = nil
	d.started = false
}

// slideWindow keeps at most the last maxDictWindow bytes of everything
// inflated so far, matching deflate's maximum back-reference distance.
func slideWindow(dict, out []byte) []byte {
	combined := make([]byte, 0, len(dict)+len(out))
	combined = append(combined, dict...)
	combined = append(combined, out...)
	if len(combined) > maxDictWindow {
		combined = combined[len(combined)-maxDictWindow:]
	}
	return combined
}

func hasTrailingMarker(buf []byte) bool {
	if len(buf) < len(Marker) {
		return false
	}
	return bytes.Equal(buf[len(buf)-len(Marker):], Marker[:])
}
