package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlink/gatewire/internal/codec"
	"github.com/emberlink/gatewire/internal/wire"
)

func TestEncodeDecodeRoundTripJSON(t *testing.T) {
	c := codec.New(codec.ModeJSON)
	seq := int64(7)
	f := &wire.Frame{Op: wire.OpDispatch, S: &seq, T: wire.EventReady, D: []byte(`{"session_id":"abc"}`)}

	raw, err := c.Encode(f)
	require.NoError(t, err)

	got, err := c.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, f.Op, got.Op)
	require.Equal(t, f.T, got.T)
	require.Equal(t, *f.S, *got.S)
	require.JSONEq(t, `{"session_id":"abc"}`, string(got.D))
}

func TestEncodeDecodeRoundTripBinary(t *testing.T) {
	c := codec.New(codec.ModeBinary)
	f := &wire.Frame{Op: wire.OpHeartbeat}

	raw, err := c.Encode(f)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	got, err := c.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, wire.OpHeartbeat, got.Op)
}

func TestDecodeMalformedFrameIsNonFatal(t *testing.T) {
	c := codec.New(codec.ModeJSON)

	_, err := c.Decode([]byte(`{not json`))
	require.Error(t, err)

	var decodeErr *codec.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeChunksConcatenatesInOrder(t *testing.T) {
	c := codec.New(codec.ModeJSON)
	whole := []byte(`{"op":1}`)

	chunks := [][]byte{whole[:3], whole[3:6], whole[6:]}
	got, err := c.DecodeChunks(chunks)
	require.NoError(t, err)
	require.Equal(t, wire.OpHeartbeat, got.Op)
}

type fakeInflater struct {
	frame    []byte
	complete bool
	err      error
}

func (f fakeInflater) Feed([]byte) ([]byte, bool, error) { return f.frame, f.complete, f.err }

func TestDecodeInboundWithoutCompleteFrameReturnsNilNil(t *testing.T) {
	c := codec.New(codec.ModeJSON)
	got, err := c.DecodeInbound([]byte("partial"), false, fakeInflater{complete: false})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDecodeInboundInflatesThenDecodes(t *testing.T) {
	c := codec.New(codec.ModeJSON)
	inflated := []byte(`{"op":11}`)
	got, err := c.DecodeInbound([]byte("compressed-tail"), false, fakeInflater{frame: inflated, complete: true})
	require.NoError(t, err)
	require.Equal(t, wire.OpHeartbeatAck, got.Op)
}

func TestDecodeInboundSkipsInflaterWhenAlreadyInflated(t *testing.T) {
	c := codec.New(codec.ModeJSON)
	got, err := c.DecodeInbound([]byte(`{"op":1}`), true, fakeInflater{complete: false})
	require.NoError(t, err)
	require.Equal(t, wire.OpHeartbeat, got.Op)
}
