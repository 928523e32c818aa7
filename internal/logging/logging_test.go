package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", "json")
	l.Info().Msg("hidden")
	l.Warn().Str("person", "Alice Moore").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"person":"Alice Moore"`)
	assert.Contains(t, out, `"service":"slotsched"`)
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "chatty", "console")
	l.Debug().Msg("debug line")
	l.Info().Msg("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}
