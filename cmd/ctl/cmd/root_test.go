package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSample(t *testing.T, dir string) (string, string) {
	rng := rand.New(rand.NewSource(7))
	var b strings.Builder
	for i := 1; i <= 200; i++ {
		n := 20 + rng.Intn(60)
		seq := make([]byte, n)
		qual := make([]byte, n)
		for j := range seq {
			seq[j] = "ACGTN"[rng.Intn(5)]
			qual[j] = byte('!' + 20 + rng.Intn(20))
		}
		b.WriteString("@read" + strconv.Itoa(i) + "\n")
		b.Write(seq)
		b.WriteString("\n+\n")
		b.Write(qual)
		b.WriteString("\n")
	}
	path := filepath.Join(dir, "in.fastq")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path, b.String()
}

func run(t *testing.T, args ...string) string {
	var out bytes.Buffer
	root := NewRoot(context.Background(), "test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "warn"))
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestCompressDecompress(t *testing.T) {
	dir := t.TempDir()
	in, want := writeSample(t, dir)
	arc := filepath.Join(dir, "reads.idn")
	back := filepath.Join(dir, "out.fastq")

	for _, codec := range []string{"raw", "zstd", "brotli", "packbits"} {
		t.Run(codec, func(t *testing.T) {
			run(t, "compress", "-i", in, "-o", arc, "--bins", "8", "--block-symbols", "512", "--codec", codec)
			run(t, "decompress", arc, "-o", back)
			got, err := os.ReadFile(back)
			require.NoError(t, err)
			assert.Equal(t, want, string(got))
		})
	}

	info := run(t, "info", arc)
	assert.Contains(t, info, "generic_ao8_qo0_pb4")
	assert.Contains(t, info, "light_ao4_qo3_pb4_qm16")
	assert.Regexp(t, `reads\s+200`, info)
}

func TestCompressAuto(t *testing.T) {
	dir := t.TempDir()
	in, want := writeSample(t, dir)
	arc := filepath.Join(dir, "reads.idn")
	back := filepath.Join(dir, "out.fastq")
	run(t, "compress", in, "-o", arc, "--auto", "--sample", "50", "--bins", "4")
	run(t, "decompress", "-i", arc, "-o", back)
	got, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func TestCompressBadSpec(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeSample(t, dir)
	root := NewRoot(context.Background(), "test")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"compress", in, "-o", filepath.Join(dir, "x.idn"), "--acid-spec", "generic_ao9"})
	assert.Error(t, root.Execute())
}

func TestStatsAndCurve(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeSample(t, dir)
	stats := run(t, "stats", in, "--spec", "dummy,generic_ao2_qo0_pb0")
	assert.Contains(t, stats, "input md5")
	assert.Regexp(t, `reads\s+200`, stats)
	assert.Contains(t, stats, "generic_ao2_qo0_pb0")

	png := filepath.Join(dir, "curve.png")
	csv := run(t, "bin-curve", in, "--stream", "qualities", "--spec", "generic_ao0_qo1_pb0", "--bins", "1,2,4", "--png", png)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "bins,used_bins,binned_rate", lines[0])
	fi, err := os.Stat(png)
	require.NoError(t, err)
	assert.Positive(t, fi.Size())
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "test\n", run(t, "version"))
}

func TestLogFileClosedAfterRun(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "idnctl.log")
	root := NewRoot(context.Background(), "test")
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"version", "--log-level", "bogus", "--log-file", path})
	require.NoError(t, root.Execute())

	slog.Warn("after run")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Invalid log level")
	assert.NotContains(t, string(data), "after run")
}
