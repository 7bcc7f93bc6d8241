package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Info().Str("ip", "1.2.3.4").Msg("flagged")
	Debug().Msg("hidden")

	out := buf.String()
	require.Contains(t, out, `"ip":"1.2.3.4"`)
	assert.Contains(t, out, `"message":"flagged"`)
	assert.NotContains(t, out, "hidden")
}

func TestAutoFormatFallsBackToJSONForBuffers(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Format: "auto", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Warn().Msg("x")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(prev) })

	l := With().Str("component", "test").Logger()
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"test"`)
}
