package inflate_test

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlink/gatewire/internal/inflate"
)

// flushedFrame writes payload to w and issues a sync flush, returning the
// bytes written for that frame. Go's flate Flush emits the same four-byte
// sync marker zlib-stream gateways use to terminate a logical frame.
func flushedFrame(t *testing.T, zw *zlib.Writer, buf *bytes.Buffer, payload string) []byte {
	t.Helper()
	before := buf.Len()
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Flush())
	return buf.Bytes()[before:]
}

func TestDecompressorSingleFrame(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	frame := flushedFrame(t, zw, &buf, `{"op":10,"d":{"heartbeat_interval":41250}}`)

	d := inflate.New()
	out, complete, err := d.Feed(frame)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, `{"op":10,"d":{"heartbeat_interval":41250}}`, string(out))
}

func TestDecompressorMultipleFramesShareDictionary(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	frame1 := flushedFrame(t, zw, &buf, `{"t":"READY","op":0,"d":{}}`)
	frame2 := flushedFrame(t, zw, &buf, `{"t":"GUILD_CREATE","op":0,"d":{}}`)

	d := inflate.New()

	out1, complete1, err := d.Feed(frame1)
	require.NoError(t, err)
	require.True(t, complete1)
	require.Equal(t, `{"t":"READY","op":0,"d":{}}`, string(out1))

	out2, complete2, err := d.Feed(frame2)
	require.NoError(t, err)
	require.True(t, complete2)
	require.Equal(t, `{"t":"GUILD_CREATE","op":0,"d":{}}`, string(out2))
}

func TestDecompressorToleratesArbitraryChunkSplits(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	frame := flushedFrame(t, zw, &buf, `{"op":0,"t":"MESSAGE_CREATE","d":{"content":"hello world"}}`)

	d := inflate.New()

	var out []byte
	var complete bool
	var err error
	for i := 0; i < len(frame); i++ {
		out, complete, err = d.Feed(frame[i : i+1])
		require.NoError(t, err)
		if i < len(frame)-1 {
			require.False(t, complete, "frame should not complete before the marker byte")
		}
	}
	require.True(t, complete)
	require.Equal(t, `{"op":0,"t":"MESSAGE_CREATE","d":{"content":"hello world"}}`, string(out))
}

func TestDecompressorResetStartsFreshStream(t *testing.T) {
	var buf1 bytes.Buffer
	zw1 := zlib.NewWriter(&buf1)
	frame1 := flushedFrame(t, zw1, &buf1, `{"op":10}`)

	d := inflate.New()
	_, complete, err := d.Feed(frame1)
	require.NoError(t, err)
	require.True(t, complete)

	d.Reset()

	var buf2 bytes.Buffer
	zw2 := zlib.NewWriter(&buf2)
	frame2 := flushedFrame(t, zw2, &buf2, `{"op":11}`)

	out, complete, err := d.Feed(frame2)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, `{"op":11}`, string(out))
}

func TestMarkerMatchesStandardSyncFlushSignature(t *testing.T) {
	require.Equal(t, [4]byte{0x00, 0x00, 0xff, 0xff}, inflate.Marker)
}
