package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupWriterFiltersByLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, slog.LevelWarn)

	slog.Info("cycle start")
	slog.Warn("watermark read failed", "err", "boom")

	out := buf.String()
	assert.NotContains(t, out, "cycle start")
	assert.Contains(t, out, "watermark read failed")
	assert.Contains(t, out, "err=boom")
}
