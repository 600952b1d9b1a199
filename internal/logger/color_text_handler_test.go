package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestColorTextHandlerPrefixesLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, nil, false)
	logger := slog.New(h)
	logger.InfoContext(context.Background(), "engine started")

	out := buf.String()
	if !strings.Contains(out, "\033[32m") {
		t.Fatalf("expected green color code in output, got %q", out)
	}
	if !strings.Contains(out, "engine started") {
		t.Fatalf("expected message in output, got %q", out)
	}
}
