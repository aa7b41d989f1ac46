package zerolog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

func TestLogger_New(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
}

func TestLogger_Levels(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	logger.Debug("debug message", quotareset.Field{Key: "kind", Value: "daily"})
	logger.Info("info message", quotareset.Field{Key: "kind", Value: "daily"})
	logger.Warn("warn message", quotareset.Field{Key: "kind", Value: "daily"})
	logger.Error("error message", quotareset.Field{Key: "kind", Value: "daily"})

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 log lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.Contains(line, `"kind":"daily"`) {
			t.Errorf("Field missing from line: %s", line)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output).Level(zerolog.WarnLevel))

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	out := output.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("Sub-threshold messages written: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("Expected warn message, got: %s", out)
	}
}
