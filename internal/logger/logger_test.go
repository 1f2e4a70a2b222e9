package logger

import (
	"testing"

	"go.uber.org/zap"

	"roundkeeper/internal/config"
)

func TestNew_FallsBackOnBadLevel(t *testing.T) {
	l, err := New(config.LogConfig{Level: "shouting", Encoding: "json"}, "roundkeeper")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !l.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info level should be enabled")
	}
}

func TestEncoding(t *testing.T) {
	if got := encoding("JSON"); got != "json" {
		t.Fatalf("encoding=%q want json", got)
	}
	if got := encoding("xml"); got != "console" {
		t.Fatalf("encoding=%q want console", got)
	}
}
