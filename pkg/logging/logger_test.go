package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agora-community/agora/pkg/config"
)

func newTestLogger(buf *bytes.Buffer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "level",
		MessageKey:    "message",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(NewScalyrEncoder(encoderConfig), zapcore.AddSync(buf), zapcore.InfoLevel)
	return zap.New(core)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var logObj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logObj); err != nil {
		t.Fatalf("Failed to parse JSON: %v (%s)", err, buf.String())
	}
	return logObj
}

func TestInitLogger(t *testing.T) {
	oldLogger := Logger
	defer func() { Logger = oldLogger }()

	for _, cfg := range []config.LoggingConfig{
		{Level: "INFO", Format: "json", ScalyrFormat: true},
		{Level: "debug", Format: "json"},
		{Level: "bogus", Format: "text"},
	} {
		if err := InitLogger(&cfg); err != nil {
			t.Fatalf("InitLogger(%+v) failed: %v", cfg, err)
		}
		if GetLogger() == nil {
			t.Fatalf("GetLogger() returned nil for %+v", cfg)
		}
	}
}

func TestScalyrEncoder(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("task done",
		zap.String("task_id", "abc"),
		zap.Int("attempts", 2),
		zap.Bool("dead", false),
		zap.Error(errors.New("classifier down")),
	)

	logObj := decodeLine(t, &buf)
	if logObj["message"] != "task done" {
		t.Errorf("Expected message 'task done', got: %v", logObj["message"])
	}
	if logObj["task_id"] != "abc" {
		t.Errorf("Expected task_id 'abc', got: %v", logObj["task_id"])
	}
	if logObj["attempts"] != float64(2) {
		t.Errorf("Expected attempts 2, got: %v", logObj["attempts"])
	}
	if logObj["dead"] != false {
		t.Errorf("Expected dead false, got: %v", logObj["dead"])
	}
	if logObj["error"] != "classifier down" {
		t.Errorf("Expected error text, got: %v", logObj["error"])
	}
	if _, ok := logObj["timestamp"]; !ok {
		t.Error("Expected 'timestamp' field in log output")
	}
}

func TestScalyrEncoderKeepsContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).With(zap.String("component", "outbox"))

	logger.Info("claimed")

	logObj := decodeLine(t, &buf)
	if logObj["component"] != "outbox" {
		t.Errorf("Expected component 'outbox', got: %v", logObj["component"])
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	if got := FromContext(context.Background(), logger); got != logger {
		t.Error("Expected the same logger when no span is active")
	}

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	FromContext(ctx, logger).Info("traced")

	logObj := decodeLine(t, &buf)
	if logObj["trace_id"] != traceID.String() {
		t.Errorf("Expected trace_id %s, got: %v", traceID, logObj["trace_id"])
	}
	if logObj["span_id"] != spanID.String() {
		t.Errorf("Expected span_id %s, got: %v", spanID, logObj["span_id"])
	}
}
