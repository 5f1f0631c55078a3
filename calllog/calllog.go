// Package calllog is the call detail record (CDR) logger from
// SPEC_FULL.md §2.7: one line per terminated call, kept on
// github.com/sirupsen/logrus and deliberately separate from the
// engine's zerolog operational trace log so the two can be shipped to
// different sinks without the access log picking up debug noise.
package calllog

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Result classifies how a call ended, for the "result" CDR field.
type Result string

const (
	ResultEstablished Result = "established"
	ResultFailed      Result = "failed"
	ResultRejected    Result = "rejected"
)

// Logger writes one structured line per terminated call.
type Logger struct {
	log *logrus.Logger
}

// New builds a calllog.Logger writing JSON lines to w.
func New(w io.Writer) *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	l.SetOutput(w)
	return &Logger{log: l}
}

// Record emits one CDR line for a terminated call.
func (c *Logger) Record(callID, fromTag, toTag string, result Result, duration time.Duration) {
	c.log.WithFields(logrus.Fields{
		"call_id":     callID,
		"from_tag":    fromTag,
		"to_tag":      toTag,
		"result":      string(result),
		"duration_ms": duration.Milliseconds(),
	}).Info("call terminated")
}
