package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestForQueryTagsEvents(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() {
		SetGlobalLogger(originalLogger)
	})

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	ctx, l := ForQuery(context.Background(), "query-1")
	l.Info().Msg("from logger")
	Ctx(ctx).Info().Msg("from context")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	for _, line := range lines {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(line, &decoded))
		require.Equal(t, "query-1", decoded[QueryIDKey])
	}
}

func TestCtxWithoutLoggerFallsBackToGlobal(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() {
		SetGlobalLogger(originalLogger)
	})

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	Ctx(context.Background()).Info().Msg("hello")
	require.Contains(t, buf.String(), "hello")
}
