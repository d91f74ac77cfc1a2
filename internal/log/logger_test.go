package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentImporter, Format: FormatJSON, Output: &buf})

	logger.Info("Import finished", FieldCount, 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec[FieldComponent] != ComponentImporter {
		t.Errorf("component = %v, want %q", rec[FieldComponent], ComponentImporter)
	}
	if rec[FieldCount] != float64(3) {
		t.Errorf("count = %v, want 3", rec[FieldCount])
	}
}

func TestNewTextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=kept") || !strings.Contains(out, "component=app") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Output: &buf}).WithComponent(ComponentSecurity)

	logger.Warn("Suspicious request")

	out := buf.String()
	if got := strings.Count(out, FieldComponent+"="); got != 1 {
		t.Errorf("component written %d times: %s", got, out)
	}
	if !strings.Contains(out, "component=security") {
		t.Errorf("component not replaced: %s", out)
	}
	if logger.Component() != ComponentSecurity {
		t.Errorf("Component() = %q", logger.Component())
	}
}
