package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger captures JSON log output for assertions.
type TestLogger struct {
	Logger *zerolog.Logger
	Buffer *bytes.Buffer
}

// NewTestLogger creates a trace-level logger writing JSON into a buffer.
func NewTestLogger(t testing.TB) *TestLogger {
	t.Helper()

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.TraceLevel)
	return &TestLogger{Logger: &logger, Buffer: buf}
}

// Contains reports whether any captured line contains s.
func (l *TestLogger) Contains(s string) bool {
	return bytes.Contains(l.Buffer.Bytes(), []byte(s))
}
