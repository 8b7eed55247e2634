package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", "", &buf)
	logger.Debug().Msg("hidden")
	ledger := Component(logger, "ledger")
	ledger.Info().Str("widget_id", "w1").Msg("unlock recorded")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "unlockstudio" || entry["component"] != "ledger" || entry["widget_id"] != "w1" {
		t.Fatalf("unexpected fields: %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("unexpected level: %v", entry["level"])
	}
}

func TestNewLoggerLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", "warn", &buf)
	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %q", buf.String())
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %v", logger.GetLevel())
	}
	if newLogger("development", "bogus", &buf).GetLevel() != zerolog.DebugLevel {
		t.Fatalf("invalid override should keep the env default")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil).GetLevel() != zerolog.Disabled {
		t.Fatalf("nil logger should be disabled")
	}
	l := newLogger("production", "", &bytes.Buffer{})
	if OrNop(&l).GetLevel() != zerolog.InfoLevel {
		t.Fatalf("OrNop should keep the given logger")
	}
}
