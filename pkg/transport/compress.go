package transport

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// Compressor gzips serialized payloads that meet the size threshold.
// Compression and retry are orthogonal: a compressed payload is retried
// exactly like an uncompressed one.
type Compressor struct {
	Enabled   bool
	Threshold int
}

// Compress returns the payload to put on the wire and whether it was
// compressed. Payloads shorter than the threshold pass through untouched.
// A codec failure falls back to the plain payload; delivery is preferred
// over the bandwidth win.
func (c Compressor) Compress(payload []byte) ([]byte, bool) {
	if !c.Enabled || len(payload) < c.Threshold {
		return payload, false
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return payload, false
	}
	if err := w.Close(); err != nil {
		return payload, false
	}
	return buf.Bytes(), true
}

// Decompress reverses Compress. It exists for tests and diagnostic
// tooling; the client never reads payloads back.
func Decompress(payload []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("transport: gzip reader: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("transport: gzip decompress: %w", err)
	}
	return buf.Bytes(), nil
}
