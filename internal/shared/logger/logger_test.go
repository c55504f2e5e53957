package logger

import (
	"bytes"
	"strings"
	"testing"

	"sockprobe/internal/shared/types"
)

func TestInitWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(types.LogConf{Level: "warn"}, &buf); err != nil {
		t.Fatalf("InitWithWriter() returned an error: %v", err)
	}
	Info().Msg("hidden")
	Warn().Str("step", "connect").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level, got: %s", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "connect") {
		t.Errorf("warn message missing from output: %s", out)
	}
}

func TestInitWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(types.LogConf{Level: "chatty"}, &buf); err != nil {
		t.Fatalf("InitWithWriter() returned an error: %v", err)
	}
	Info().Msg("after fallback")
	out := buf.String()
	if !strings.Contains(out, "defaulting to 'info'") {
		t.Errorf("expected fallback notice, got: %s", out)
	}
	if !strings.Contains(out, "after fallback") {
		t.Errorf("info message should be written after fallback, got: %s", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(types.LogConf{Level: "debug"}, &buf); err != nil {
		t.Fatalf("InitWithWriter() returned an error: %v", err)
	}
	l := WithComponent("probe")
	l.Info().Msg("tagged")
	Info().Endpoint("target", types.EndpointFrom4([4]byte{127, 0, 0, 1}, 8080)).Msg("endpoint")

	out := buf.String()
	if !strings.Contains(out, "component=probe") {
		t.Errorf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "127.0.0.1:8080") {
		t.Errorf("expected endpoint field, got: %s", out)
	}
}
