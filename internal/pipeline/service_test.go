// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/ManuGH/phantomclip/internal/fetch"
	"github.com/ManuGH/phantomclip/internal/infra/ffmpeg"
	"github.com/ManuGH/phantomclip/internal/resolver"
	"github.com/ManuGH/phantomclip/internal/storage"
	"github.com/ManuGH/phantomclip/internal/transform"
	"github.com/ManuGH/phantomclip/internal/upload"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tiktokSource = "https://www.tiktok.com/@someone/video/7234567890123456789"

// copyRunner stands in for ffmpeg. The perturb step (the one carrying -vf) appends the filter to
// the input bytes so the output differs from the input and stays deterministic.
type copyRunner struct {
	onRun func(args []string)
}

func (r *copyRunner) Run(_ context.Context, args []string) error {
	if r.onRun != nil {
		r.onRun(args)
	}
	var input, filter string
	for i := 0; i+1 < len(args); i++ {
		switch args[i] {
		case "-i":
			input = args[i+1]
		case "-vf":
			filter = args[i+1]
		}
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if filter != "" {
		data = append(data, filter...)
	}
	return os.WriteFile(args[len(args)-1], data, 0o600)
}

type harness struct {
	svc      *Service
	registry *storage.Registry
	media    []byte
	resolved chan string
}

func newHarness(t *testing.T, runner transform.Runner, resolve resolver.Func, sink upload.Sink) *harness {
	t.Helper()
	media := bytes.Repeat([]byte{0xAB}, 500*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(media)
	}))
	t.Cleanup(srv.Close)

	reg, err := storage.NewRegistry(filepath.Join(t.TempDir(), "videos"))
	require.NoError(t, err)

	if resolve == nil {
		resolve = func(context.Context, string) (string, error) { return srv.URL + "/v.mp4", nil }
	}
	detector := resolver.NewRegistry()
	detector.Register(resolver.PlatformTikTok, resolve)

	svc, err := New(Deps{
		Detector:    detector,
		Fetcher:     fetch.New(srv.Client(), reg),
		Transformer: transform.New(runner, reg),
		Registry:    reg,
		Sink:        sink,
	})
	require.NoError(t, err)
	return &harness{svc: svc, registry: reg, media: media}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func sha(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestSubmit_FetchTransformServe(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)

	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)
	assert.Equal(t, clip.StateReady, res.State)
	assert.Equal(t, "tiktok", res.Platform)
	assert.True(t, storage.ValidID(res.ID))
	assert.NotEqual(t, sha(h.media), res.ContentHash)

	job, ok := h.svc.Job(res.ID)
	require.True(t, ok)
	assert.Equal(t, clip.StateReady, job.State())

	d, err := h.svc.Open(res.ID)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	assert.Equal(t, "video/mp4", d.ContentType)
	assert.Equal(t, res.ID+".mp4", d.Name)

	body, err := io.ReadAll(d.File)
	require.NoError(t, err)
	assert.Equal(t, d.Size, int64(len(body)))
	assert.True(t, bytes.HasPrefix(body, h.media))
	assert.True(t, strings.HasSuffix(string(body), "eq=saturation=1.05"))
	assert.Equal(t, res.ContentHash, sha(body))

	assert.Equal(t, clip.StateDelivered, job.State())
	_, ok = h.svc.Job(res.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{res.ID + ".mp4"}, dirNames(t, h.registry.Dir()))
}

func TestSubmit_CustomSaturation(t *testing.T) {
	var filters []string
	runner := &copyRunner{onRun: func(args []string) {
		for i := range args {
			if args[i] == "-vf" {
				filters = append(filters, args[i+1])
			}
		}
	}}
	h := newHarness(t, runner, nil, nil)

	sat := 1.5
	_, err := h.svc.Submit(context.Background(), tiktokSource, &sat)
	require.NoError(t, err)
	assert.Equal(t, []string{"eq=saturation=1.5"}, filters)
}

func TestSubmit_InvalidSaturation(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)
	for _, v := range []float64{0, -1, 3.5} {
		sat := v
		_, err := h.svc.Submit(context.Background(), tiktokSource, &sat)
		require.ErrorIs(t, err, clip.ErrInvalidSaturation, "saturation %v", v)
	}
	assert.Empty(t, dirNames(t, h.registry.Dir()))
}

func TestSubmit_ResolutionFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name    string
		resolve resolver.Func
		source  string
		reason  clip.ResolutionReason
	}{
		{
			name:    "empty url",
			resolve: func(context.Context, string) (string, error) { return "", nil },
			source:  tiktokSource,
			reason:  clip.ResolutionUnresolvable,
		},
		{
			name:    "untyped resolver error",
			resolve: func(context.Context, string) (string, error) { return "", errors.New("boom") },
			source:  tiktokSource,
			reason:  clip.ResolutionUpstream,
		},
		{
			name:    "unsupported host",
			resolve: func(context.Context, string) (string, error) { return "http://unused", nil },
			source:  "https://example.com/watch?v=1",
			reason:  clip.ResolutionUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &copyRunner{}, tt.resolve, nil)
			res, err := h.svc.Submit(context.Background(), tt.source, nil)
			require.Error(t, err)

			var re *clip.ResolutionError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.reason, re.Reason)
			assert.Equal(t, clip.StateFailed, res.State)
			stage, _ := clip.StageOf(err)
			assert.Equal(t, clip.StageResolve, stage)
			assert.Empty(t, dirNames(t, h.registry.Dir()))
		})
	}
}

func TestSubmit_ToolUnavailablePreservesOriginal(t *testing.T) {
	exec := ffmpeg.NewExecutor(filepath.Join(t.TempDir(), "no-such-ffmpeg"), zerolog.Nop())
	sink := &recordingSink{}
	h := newHarness(t, exec, nil, sink)

	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.Error(t, err)

	var te *clip.TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, clip.TransformToolUnavailable, te.Kind)
	assert.Equal(t, clip.StateFailed, res.State)

	// the fetched original is set aside, no work dirs remain
	kept := storage.FailedPrefix + res.ID + storage.Ext
	assert.Equal(t, []string{kept}, dirNames(t, h.registry.Dir()))
	data, err := os.ReadFile(filepath.Join(h.registry.Dir(), kept))
	require.NoError(t, err)
	assert.Equal(t, h.media, data)
	assert.False(t, h.registry.Leased(res.ID))

	// the unmodified original is never handed out
	_, err = h.svc.Open(res.ID)
	require.ErrorIs(t, err, clip.ErrNotFound)
	_, err = h.svc.Publish(context.Background(), res.ID)
	require.ErrorIs(t, err, clip.ErrNotFound)
	assert.Empty(t, sink.keys)
}

func TestSubmit_FailedOriginalIsSwept(t *testing.T) {
	exec := ffmpeg.NewExecutor(filepath.Join(t.TempDir(), "no-such-ffmpeg"), zerolog.Nop())
	h := newHarness(t, exec, nil, nil)
	_, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.Error(t, err)

	sw := storage.NewSweeper(h.registry, clip.RetentionPolicy{MaxAge: time.Millisecond, SweepInterval: time.Hour})
	sw.Now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, sw.SweepOnce(context.Background()).Removed)
	assert.Empty(t, dirNames(t, h.registry.Dir()))
}

func TestSubmit_NotServableWhileTransforming(t *testing.T) {
	var h *harness
	sink := &recordingSink{}
	var openErrs, publishErrs []error
	runner := &copyRunner{onRun: func(args []string) {
		id, _ := storage.IDFromName(args[len(args)-1])
		d, err := h.svc.Open(id)
		if d != nil {
			_ = d.Close()
		}
		openErrs = append(openErrs, err)
		_, err = h.svc.Publish(context.Background(), id)
		publishErrs = append(publishErrs, err)
	}}
	h = newHarness(t, runner, nil, sink)

	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)
	require.Len(t, openErrs, 2)
	for i := range openErrs {
		assert.ErrorIs(t, openErrs[i], clip.ErrNotFound)
		assert.ErrorIs(t, publishErrs[i], clip.ErrNotFound)
	}
	assert.Empty(t, sink.keys)

	d, err := h.svc.Open(res.ID)
	require.NoError(t, err)
	require.NoError(t, d.Close())
}

func TestSubmit_LeaseHeldUntilReady(t *testing.T) {
	var h *harness
	var leasedDuringTransform []bool
	runner := &copyRunner{onRun: func(args []string) {
		id, _ := storage.IDFromName(args[len(args)-1])
		leasedDuringTransform = append(leasedDuringTransform, h.registry.Leased(id))
	}}
	h = newHarness(t, runner, nil, nil)

	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, leasedDuringTransform)
	assert.False(t, h.registry.Leased(res.ID))
}

func TestSubmit_IgnoresCallerCancellation(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.svc.Submit(ctx, tiktokSource, nil)
	require.NoError(t, err)
	assert.Equal(t, clip.StateReady, res.State)
}

func TestSubmit_ConcurrentIDsAreDistinct(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)

	const n = 100
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
			ids[i], errs[i] = res.ID, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		_, dup := seen[ids[i]]
		require.False(t, dup, "duplicate id %s", ids[i])
		seen[ids[i]] = struct{}{}
	}
	files, err := h.registry.List()
	require.NoError(t, err)
	assert.Len(t, files, n)
}

func TestOpen_NotFound(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)

	for _, id := range []string{"", "../etc/passwd", "not-a-uuid", h.registry.NewID()} {
		_, err := h.svc.Open(id)
		require.ErrorIs(t, err, clip.ErrNotFound, "id %q", id)
		assert.False(t, h.registry.Leased(id))
	}
}

func TestOpen_SweptFile(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)
	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)

	sw := storage.NewSweeper(h.registry, clip.RetentionPolicy{MaxAge: time.Millisecond, SweepInterval: time.Hour})
	sw.Now = func() time.Time { return time.Now().Add(time.Hour) }
	result := sw.SweepOnce(context.Background())
	assert.Equal(t, 1, result.Removed)

	_, err = h.svc.Open(res.ID)
	require.ErrorIs(t, err, clip.ErrNotFound)
}

func TestOpen_HoldsLeaseUntilClose(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)
	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)

	d, err := h.svc.Open(res.ID)
	require.NoError(t, err)
	assert.True(t, h.registry.Leased(res.ID))
	require.NoError(t, d.Close())
	assert.False(t, h.registry.Leased(res.ID))
}

type recordingSink struct {
	keys []string
	err  error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, localPath, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	s.keys = append(s.keys, key)
	return "https://cdn.example/videos/" + key, nil
}

func TestPublish_LocalLink(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, upload.NewLocalLink("http://clips.example/"))
	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)
	job, _ := h.svc.Job(res.ID)

	link, err := h.svc.Publish(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://clips.example/download/?key="+res.ID, link)
	assert.Equal(t, clip.StateDelivered, job.State())

	_, err = h.registry.Lookup(res.ID)
	assert.NoError(t, err)
}

func TestPublish_DeleteLocal(t *testing.T) {
	sink := &recordingSink{}
	h := newHarness(t, &copyRunner{}, nil, sink)
	h.svc.deps.DeleteLocal = true

	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)

	u, err := h.svc.Publish(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/videos/"+res.ID+".mp4", u)
	assert.Equal(t, []string{res.ID + ".mp4"}, sink.keys)

	_, err = h.registry.Lookup(res.ID)
	require.ErrorIs(t, err, clip.ErrNotFound)
}

func TestPublish_Errors(t *testing.T) {
	sink := &recordingSink{err: errors.New("access denied")}
	h := newHarness(t, &copyRunner{}, nil, sink)

	_, err := h.svc.Publish(context.Background(), h.registry.NewID())
	require.ErrorIs(t, err, clip.ErrNotFound)

	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)
	_, err = h.svc.Publish(context.Background(), res.ID)
	var pe *clip.PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "recording", pe.Sink)

	job, ok := h.svc.Job(res.ID)
	require.True(t, ok)
	assert.Equal(t, clip.StateReady, job.State())
}

func TestPublish_NoSink(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)
	_, err := h.svc.Publish(context.Background(), h.registry.NewID())
	var pe *clip.PublishError
	require.ErrorAs(t, err, &pe)
}

func TestPrune_ForgetsStaleReadyJobs(t *testing.T) {
	h := newHarness(t, &copyRunner{}, nil, nil)
	res, err := h.svc.Submit(context.Background(), tiktokSource, nil)
	require.NoError(t, err)

	h.svc.now = func() time.Time { return time.Now().Add(2 * clip.DefaultMaxAge) }
	h.svc.prune()
	_, ok := h.svc.Job(res.ID)
	assert.False(t, ok)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}
