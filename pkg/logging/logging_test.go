package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelDebug)
	ctx := AppendCtx(context.Background(), slog.String("app", "idencomp"))
	ctx = AppendCtx(ctx, slog.Int("worker", 3))
	log.With("stream", "acids").DebugContext(ctx, "coded block")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "coded block", rec["msg"])
	assert.Equal(t, "idencomp", rec["app"])
	assert.Equal(t, float64(3), rec["worker"])
	assert.Equal(t, "acids", rec["stream"])
}

func TestLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelWarn)
	log.Info("quiet")
	assert.Zero(t, buf.Len())
	log.Warn("loud")
	assert.Contains(t, buf.String(), "msg=loud")
}

func TestAppendCtxIsolated(t *testing.T) {
	base := AppendCtx(context.Background(), slog.String("a", "1"))
	left := AppendCtx(base, slog.String("b", "2"))
	right := AppendCtx(base, slog.String("c", "3"))
	assert.Len(t, left.Value(ctxKey{}).([]slog.Attr), 2)
	assert.Equal(t, "c", right.Value(ctxKey{}).([]slog.Attr)[1].Key)
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idnctl.log")
	w := RotatingFile(path, 1)
	Logger(w, false, slog.LevelInfo).Info("hello")
	require.NoError(t, w.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}
