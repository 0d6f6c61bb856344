// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transform

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/ManuGH/phantomclip/internal/infra/ffmpeg"
	"github.com/ManuGH/phantomclip/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTools(t *testing.T) (string, string) {
	t.Helper()
	ff, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}
	return ff, ffprobe
}

// makeTaggedClip renders a short test clip carrying user metadata.
func makeTaggedClip(t *testing.T, ff, dest string) {
	t.Helper()
	cmd := exec.Command(ff, "-y", "-nostdin", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=1:size=160x120:rate=10",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac", "-shortest",
		"-metadata", "title=uploader-fingerprint",
		"-metadata", "comment=tracking-id-1234",
		"-metadata", "artist=someone",
		"-metadata:s:v:0", "language=eng",
		dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot render test clip (libx264/aac missing?): %v: %s", err, out)
	}
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	in, err := os.Open(src)
	require.NoError(t, err)
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	require.NoError(t, err)
	_, err = io.Copy(out, in)
	require.NoError(t, err)
	require.NoError(t, out.Close())
}

func TestTransformWithFFmpeg(t *testing.T) {
	ff, probeBin := requireTools(t)

	reg, err := storage.NewRegistry(filepath.Join(t.TempDir(), "videos"))
	require.NoError(t, err)
	source := filepath.Join(t.TempDir(), "source.mp4")
	makeTaggedClip(t, ff, source)
	sourceHash, err := HashFile(source)
	require.NoError(t, err)

	prober := ffmpeg.NewProber(probeBin)
	before, err := prober.Probe(context.Background(), source)
	require.NoError(t, err)
	require.Equal(t, "uploader-fingerprint", before.Format.Tags["title"])

	tr := New(ffmpeg.NewExecutor(ff, zerolog.Nop()), reg, WithProber(prober))

	var hashes []string
	for i := 0; i < 2; i++ {
		path, err := reg.PathFor(reg.NewID())
		require.NoError(t, err)
		copyFile(t, source, path)

		res, err := tr.Transform(context.Background(), path, 1.05)
		require.NoError(t, err)
		assert.Positive(t, res.Size)
		hashes = append(hashes, res.ContentHash)

		after, err := prober.Probe(context.Background(), res.Path)
		require.NoError(t, err)
		assert.True(t, after.HasVideo())
		for _, key := range []string{"title", "comment", "artist", "creation_time", "encoder"} {
			assert.NotContains(t, after.Format.Tags, key)
		}
		for _, s := range after.Streams {
			assert.NotEqual(t, "eng", s.Tags["language"])
		}
		assert.Empty(t, after.Chapters)
	}

	assert.Equal(t, hashes[0], hashes[1], "same input and factor must give identical bytes")
	assert.NotEqual(t, sourceHash, hashes[0])
}
