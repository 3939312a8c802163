// Copyright 2024 Plateau Data Systems, Inc. All rights reserved.
package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/plateaudb/plateau/logger"
)

func TestStandardLoggerVerbosity(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewStandardLogger(&buf)

	l.Debugf("quiet %d", 1)
	l.Infof("loud %d", 2)
	l.Warnf("loud %d", 3)
	l.Errorf("loud %d", 4)

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("debug output should be suppressed at info verbosity: %q", out)
	}
	for _, want := range []string{"INFO:  loud 2", "WARN:  loud 3", "ERROR: loud 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output: %q", want, out)
		}
	}
}

func TestVerboseLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewVerboseLogger(&buf)
	l.Debugf("chatty %d", 1)
	if !strings.Contains(buf.String(), "DEBUG: chatty 1") {
		t.Errorf("expected debug output: %q", buf.String())
	}
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewStandardLogger(&buf).WithPrefix("kafka: ")
	l.Infof("connected")
	if !strings.Contains(buf.String(), "kafka: ") {
		t.Errorf("expected prefixed output: %q", buf.String())
	}
}

func TestBufferLogger(t *testing.T) {
	bl := logger.NewBufferLogger()
	bl.Infof("one %d", 1)
	bl.Errorf(" two %d", 2)
	if got := bl.ReadAll(); got != "one 1 two 2" {
		t.Errorf("unexpected buffer contents %q", got)
	}
	if got := bl.ReadAll(); got != "" {
		t.Errorf("ReadAll should reset the buffer, got %q", got)
	}
}

func TestNopLogger(t *testing.T) {
	// Just exercising the no-op paths.
	l := logger.NopLogger.WithPrefix("x")
	l.Printf("one")
	l.Debugf("two")
	l.Errorf("three")
}
