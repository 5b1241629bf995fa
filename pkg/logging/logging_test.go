package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

func TestSetupWriterJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	SetupWriter(&buf, "warn", false)

	zlog.Info().Msg("hidden")
	zlog.Warn().Str("out_order_no", "P1").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %q", lines)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["message"] != "shown" || entry["out_order_no"] != "P1" || entry["time"] == nil {
		t.Fatalf("entry = %v", entry)
	}
}

func TestSetupWriterUnknownLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetupWriter(&bytes.Buffer{}, "chatty", true)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %v", zerolog.GlobalLevel())
	}
}
