package transport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor_RoundTrip(t *testing.T) {
	payload := []byte(`{"resourceSpans":[{"resource":{"attributes":[]}}],"padding":"` +
		strings.Repeat("x", 200) + `"}`)

	c := Compressor{Enabled: true, Threshold: 100}
	compressed, wasCompressed := c.Compress(payload)
	require.True(t, wasCompressed)
	require.NotEqual(t, payload, compressed)

	restored, err := Decompress(compressed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, restored), "round trip must be byte-identical")
}

func TestCompressor_ThresholdIsInclusive(t *testing.T) {
	c := Compressor{Enabled: true, Threshold: 10}

	_, compressed := c.Compress([]byte("0123456789"))
	assert.True(t, compressed, "payload length equal to threshold must compress")

	_, compressed = c.Compress([]byte("012345678"))
	assert.False(t, compressed, "payload below threshold passes through")
}

func TestCompressor_DisabledPassesThrough(t *testing.T) {
	c := Compressor{Enabled: false, Threshold: 1}
	payload := []byte(strings.Repeat("y", 100))

	out, compressed := c.Compress(payload)
	assert.False(t, compressed)
	assert.Equal(t, payload, out)
}
