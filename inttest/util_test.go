package inttest

import (
	"bytes"
	"testing"
)

// logWriter sends every complete line written to it to t.Log.  The channel
// trace already marks the direction of each line.
type logWriter struct {
	t   *testing.T
	buf bytes.Buffer
}

func newLogWriter(t *testing.T) *logWriter {
	return &logWriter{t: t}
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, ch := range p {
		switch ch {
		case '\r':
			// skip
		case '\n':
			w.t.Log(w.buf.String())
			w.buf.Reset()
		default:
			w.buf.WriteByte(ch)
		}

	}
	return len(p), nil
}

func (w *logWriter) Close() error {
	// flush the rest of the buffer to a log
	if w.buf.Len() > 0 {
		w.t.Log(w.buf.String())
	}
	return nil
}
