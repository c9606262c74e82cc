package logging

import (
	"bytes"
	"context"
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
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestInit_JSONOutput(t *testing.T) {
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})

	Component("recall").Info().Int("count", 3).Msg("done")
	Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, `"component":"recall"`)
	assert.Contains(t, out, `"count":3`)
	assert.Contains(t, out, `"message":"done"`)
	assert.NotContains(t, out, "hidden")
}

func TestCtx_RequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRequestID(ctx, "req-42")

	require.Equal(t, "req-42", RequestIDFromContext(ctx))
	Ctx(ctx).Warn().Msg("lookup miss")
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)

	assert.Len(t, GenerateRequestID(), 36)
}
