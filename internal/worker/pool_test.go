package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoforge/internal/catalog"
	"videoforge/internal/config"
	"videoforge/internal/ledger"
	"videoforge/internal/media"
	"videoforge/internal/model"
	"videoforge/internal/queue"
	"videoforge/internal/storage"
)

// scriptedRunner fabricates tool outcomes. By default every ffmpeg call
// succeeds and writes its destination; fail matches against the argument
// vector to break selected invocations.
type scriptedRunner struct {
	calls [][]string
	fail  func(args []string) bool
	probe string
}

func (r *scriptedRunner) Run(_ context.Context, name string, args []string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if name == "ffprobe" {
		return []byte(r.probe), nil, nil
	}
	if r.fail != nil && r.fail(args) {
		return nil, []byte("conversion failed"), assert.AnError
	}
	if len(args) >= 2 && args[len(args)-1] == "-y" {
		_ = os.WriteFile(args[len(args)-2], []byte("frames"), 0o644)
	}
	return nil, nil, nil
}

type fixture struct {
	pool    *Pool
	catalog *catalog.MemoryStore
	ledger  *ledger.MemoryStore
	runner  *scriptedRunner
	video   *model.Video
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.Default()
	base := t.TempDir()
	store := storage.NewManager(filepath.Join(base, "uploads"), filepath.Join(base, "processed"))

	runner := &scriptedRunner{
		probe: `{"streams":[{"codec_type":"video","codec_name":"h264","width":1920,"height":1080}],` +
			`"format":{"duration":"30.0","format_name":"mp4"}}`,
	}
	exec := media.NewExecutor(config.FFmpegConfig{
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		RunTimeout:   time.Minute,
		ProbeTimeout: time.Minute,
	}, filepath.Join(base, "assets"), runner, logger)

	cat := catalog.NewMemoryStore()
	led := ledger.NewMemoryStore(logger)

	srcPath := filepath.Join(base, "uploads", "source.mp4")
	require.NoError(t, os.MkdirAll(filepath.Dir(srcPath), 0o755))
	require.NoError(t, os.WriteFile(srcPath, []byte("source"), 0o644))
	duration := 30.0
	video := &model.Video{
		Filename:         "source.mp4",
		OriginalFilename: "source.mp4",
		FilePath:         srcPath,
		FileSize:         6,
		Duration:         &duration,
		MimeType:         "video/mp4",
	}
	require.NoError(t, cat.RegisterVideo(context.Background(), video))

	pool := NewPool(Deps{
		Queue:    queue.NewMemoryQueue(8),
		Ledger:   led,
		Catalog:  cat,
		Storage:  store,
		Executor: exec,
		Logger:   logger,
		Count:    1,
	})
	return &fixture{pool: pool, catalog: cat, ledger: led, runner: runner, video: video}
}

func (f *fixture) submit(t *testing.T, kind model.TransformKind, payload any) *queue.Task {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	job := &model.Job{VideoID: f.video.ID, JobType: kind, Config: raw}
	require.NoError(t, f.ledger.Create(context.Background(), job))
	return &queue.Task{JobID: job.ID, VideoID: f.video.ID, Kind: kind, Payload: raw}
}

func (f *fixture) jobAfter(t *testing.T, task *queue.Task) *model.Job {
	t.Helper()
	job, err := f.ledger.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	return job
}

func TestTrimJobCompletes(t *testing.T) {
	f := newFixture(t)
	task := f.submit(t, model.KindTrim, model.TrimConfig{StartTime: 0, EndTime: 10})

	f.pool.process(context.Background(), slog.Default(), task)

	job := f.jobAfter(t, task)
	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotEmpty(t, job.ResultFilePath)
	assert.Empty(t, job.ErrorMessage)

	info, err := os.Stat(job.ResultFilePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	artifacts, err := f.catalog.ListArtifacts(context.Background(), f.video.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, model.KindTrim, artifacts[0].ProcessingType)
	assert.Equal(t, job.ResultFilePath, artifacts[0].FilePath)
	assert.Contains(t, filepath.Base(artifacts[0].FilePath), "_trimmed")
}

func TestTrimBeyondDurationFailsWithoutSpawn(t *testing.T) {
	f := newFixture(t)
	task := f.submit(t, model.KindTrim, model.TrimConfig{StartTime: 0, EndTime: 45}) // source is 30s

	f.pool.process(context.Background(), slog.Default(), task)

	job := f.jobAfter(t, task)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.NotEmpty(t, job.ErrorMessage)
	assert.Empty(t, job.ResultFilePath)
	assert.Empty(t, f.runner.calls)
}

func TestToolFailureDiscardsOutputAndFailsJob(t *testing.T) {
	f := newFixture(t)
	f.runner.fail = func([]string) bool { return true }
	task := f.submit(t, model.KindTrim, model.TrimConfig{StartTime: 0, EndTime: 10})

	f.pool.process(context.Background(), slog.Default(), task)

	job := f.jobAfter(t, task)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "conversion failed")

	artifacts, err := f.catalog.ListArtifacts(context.Background(), f.video.ID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	// No partial output left behind.
	processed := f.pool.deps.Storage.Dir(storage.CategoryProcessed)
	entries, err := os.ReadDir(processed)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQualityFanOutRegistersEachPreset(t *testing.T) {
	f := newFixture(t)
	task := f.submit(t, model.KindQuality, model.QualityConfig{Qualities: []string{"720p", "480p"}})

	f.pool.process(context.Background(), slog.Default(), task)

	job := f.jobAfter(t, task)
	assert.Equal(t, model.StatusCompleted, job.Status)

	artifacts, err := f.catalog.ListArtifacts(context.Background(), f.video.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	qualities := []string{*artifacts[0].Quality, *artifacts[1].Quality}
	assert.ElementsMatch(t, []string{"720p", "480p"}, qualities)
}

func TestQualityPartialFailureKeepsEarlierArtifacts(t *testing.T) {
	f := newFixture(t)
	f.runner.fail = func(args []string) bool {
		// Break the 480p invocation only.
		return strings.Contains(strings.Join(args, " "), "scale=854:480")
	}
	task := f.submit(t, model.KindQuality, model.QualityConfig{Qualities: []string{"720p", "480p"}})

	f.pool.process(context.Background(), slog.Default(), task)

	job := f.jobAfter(t, task)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "480p")
	// Progress froze at the value reported after the first preset.
	assert.Equal(t, 45, job.Progress)

	artifacts, err := f.catalog.ListArtifacts(context.Background(), f.video.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	require.NotNil(t, artifacts[0].Quality)
	assert.Equal(t, "720p", *artifacts[0].Quality)
}

func TestQualityUnknownPresetSpawnsNothing(t *testing.T) {
	f := newFixture(t)
	task := f.submit(t, model.KindQuality, model.QualityConfig{Qualities: []string{"1080p", "bogus"}})

	f.pool.process(context.Background(), slog.Default(), task)

	job := f.jobAfter(t, task)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "bogus")
	assert.Empty(t, f.runner.calls)

	artifacts, err := f.catalog.ListArtifacts(context.Background(), f.video.ID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestRedeliveredTerminalTaskIsDropped(t *testing.T) {
	f := newFixture(t)
	task := f.submit(t, model.KindTrim, model.TrimConfig{StartTime: 0, EndTime: 10})

	f.pool.process(context.Background(), slog.Default(), task)
	first := f.jobAfter(t, task)
	callsAfterFirst := len(f.runner.calls)

	// The queue backend delivers the same task again.
	f.pool.process(context.Background(), slog.Default(), task)

	second := f.jobAfter(t, task)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.ResultFilePath, second.ResultFilePath)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, callsAfterFirst, len(f.runner.calls), "no re-execution on redelivery")

	artifacts, err := f.catalog.ListArtifacts(context.Background(), f.video.ID)
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
}

func TestProbeJobBackfillsMetadata(t *testing.T) {
	f := newFixture(t)
	// Fresh video without metadata.
	bare := &model.Video{
		Filename:         "bare.mp4",
		OriginalFilename: "bare.mp4",
		FilePath:         f.video.FilePath,
		FileSize:         6,
		MimeType:         "video/mp4",
	}
	require.NoError(t, f.catalog.RegisterVideo(context.Background(), bare))
	job := &model.Job{VideoID: bare.ID, JobType: model.KindProbe}
	require.NoError(t, f.ledger.Create(context.Background(), job))
	task := &queue.Task{JobID: job.ID, VideoID: bare.ID, Kind: model.KindProbe}

	f.pool.process(context.Background(), slog.Default(), task)

	got := f.jobAfter(t, task)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, bare.FilePath, got.ResultFilePath)

	refreshed, err := f.catalog.GetVideo(context.Background(), bare.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.Duration)
	assert.Equal(t, 30.0, *refreshed.Duration)
	assert.Equal(t, 1920, *refreshed.Width)
}

func TestMissingVideoFailsJob(t *testing.T) {
	f := newFixture(t)
	// The ledger accepted the job but the catalog row is gone by the time
	// the worker claims it.
	job := &model.Job{VideoID: "gone", JobType: model.KindTrim, Config: json.RawMessage(`{"start_time":0,"end_time":5}`)}
	require.NoError(t, f.ledger.Create(context.Background(), job))
	task := &queue.Task{JobID: job.ID, VideoID: "gone", Kind: model.KindTrim}

	f.pool.process(context.Background(), slog.Default(), task)

	got := f.jobAfter(t, task)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "not found")
	assert.Empty(t, f.runner.calls)
}

func TestPoolRunDrainsQueue(t *testing.T) {
	f := newFixture(t)
	q := f.pool.deps.Queue.(*queue.MemoryQueue)
	task := f.submit(t, model.KindTrim, model.TrimConfig{StartTime: 0, EndTime: 10})
	require.NoError(t, q.Enqueue(context.Background(), *task))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	f.pool.deps.PollTimeout = 20 * time.Millisecond
	go func() {
		_ = f.pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		job, err := f.ledger.Get(context.Background(), task.JobID)
		return err == nil && job.Status == model.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}
