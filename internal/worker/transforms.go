package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"videoforge/internal/catalog"
	"videoforge/internal/errs"
	"videoforge/internal/media"
	"videoforge/internal/model"
	"videoforge/internal/storage"
)

// runProbe backfills the source video's metadata. It runs once, as the
// first job after upload; transforms afterwards only read those fields.
func (p *Pool) runProbe(ctx context.Context, job *model.Job, video *model.Video) (string, error) {
	info, err := p.deps.Executor.Probe(ctx, video.FilePath)
	if err != nil {
		return "", err
	}
	p.progress(ctx, job.ID, 50)
	err = p.deps.Catalog.SetVideoProbe(ctx, video.ID, catalog.ProbeResult{
		Duration: info.Duration,
		Width:    info.Width,
		Height:   info.Height,
		Format:   info.Format,
	})
	if err != nil {
		return "", err
	}
	return video.FilePath, nil
}

func (p *Pool) runTrim(ctx context.Context, job *model.Job, video *model.Video) (string, error) {
	var cfg model.TrimConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return "", errs.Wrap(errs.Validation, err, "bad trim config")
	}

	p.progress(ctx, job.ID, 20)
	dst, err := p.deps.Storage.Allocate(storage.CategoryProcessed, "trimmed", filepath.Ext(video.Filename))
	if err != nil {
		return "", err
	}
	if err := p.deps.Executor.Trim(ctx, video.FilePath, dst, cfg, video.Duration); err != nil {
		_ = p.deps.Storage.Discard(dst)
		return "", err
	}
	p.progress(ctx, job.ID, 80)

	if _, err := p.registerArtifact(ctx, video, dst, model.KindTrim, job.Config, nil); err != nil {
		return "", err
	}
	return dst, nil
}

func (p *Pool) runOverlay(ctx context.Context, job *model.Job, video *model.Video) (string, error) {
	var cfg model.OverlayConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return "", errs.Wrap(errs.Validation, err, "bad overlay config")
	}

	p.progress(ctx, job.ID, 20)
	dst, err := p.deps.Storage.Allocate(storage.CategoryProcessed, "overlay", filepath.Ext(video.Filename))
	if err != nil {
		return "", err
	}
	if err := p.deps.Executor.Overlay(ctx, video.FilePath, dst, cfg); err != nil {
		_ = p.deps.Storage.Discard(dst)
		return "", err
	}
	p.progress(ctx, job.ID, 80)

	artifact, err := p.registerArtifact(ctx, video, dst, model.KindOverlay, job.Config, nil)
	if err != nil {
		return "", err
	}

	overlay := &model.Overlay{
		ProcessedVideoID: artifact.ID,
		OverlayType:      cfg.OverlayType,
		Content:          cfg.Content,
		PositionX:        cfg.PositionX,
		PositionY:        cfg.PositionY,
		StartTime:        cfg.StartTime,
		EndTime:          cfg.EndTime,
		FontColor:        cfg.FontColor,
		Language:         cfg.Language,
	}
	if cfg.FontSize > 0 {
		size := cfg.FontSize
		overlay.FontSize = &size
	}
	if err := p.deps.Catalog.RegisterOverlay(ctx, overlay); err != nil {
		return "", err
	}
	return dst, nil
}

func (p *Pool) runWatermark(ctx context.Context, job *model.Job, video *model.Video) (string, error) {
	var cfg model.WatermarkConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return "", errs.Wrap(errs.Validation, err, "bad watermark config")
	}

	p.progress(ctx, job.ID, 20)
	dst, err := p.deps.Storage.Allocate(storage.CategoryProcessed, "watermarked", filepath.Ext(video.Filename))
	if err != nil {
		return "", err
	}
	if err := p.deps.Executor.Watermark(ctx, video.FilePath, dst, cfg); err != nil {
		_ = p.deps.Storage.Discard(dst)
		return "", err
	}
	p.progress(ctx, job.ID, 80)

	if _, err := p.registerArtifact(ctx, video, dst, model.KindWatermark, job.Config, nil); err != nil {
		return "", err
	}
	return dst, nil
}

// runQuality fans one job out over several presets, run sequentially.
// Every preset that succeeds is registered as its own artifact before the
// next starts, so a failure partway leaves the earlier artifacts intact
// and fails the job naming the preset that broke.
func (p *Pool) runQuality(ctx context.Context, log *slog.Logger, job *model.Job, video *model.Video) (string, error) {
	var cfg model.QualityConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return "", errs.Wrap(errs.Validation, err, "bad quality config")
	}
	if err := media.ValidatePresets(cfg.Qualities); err != nil {
		return "", err
	}

	var lastResult string
	total := len(cfg.Qualities)
	for i, preset := range cfg.Qualities {
		dst, err := p.deps.Storage.Allocate(storage.CategoryProcessed, preset, filepath.Ext(video.Filename))
		if err != nil {
			return "", fmt.Errorf("preset %s: %w", preset, err)
		}
		if err := p.deps.Executor.Quality(ctx, video.FilePath, dst, preset); err != nil {
			_ = p.deps.Storage.Discard(dst)
			return "", fmt.Errorf("preset %s: %w", preset, err)
		}
		quality := preset
		if _, err := p.registerArtifact(ctx, video, dst, model.KindQuality, job.Config, &quality); err != nil {
			return "", fmt.Errorf("preset %s: %w", preset, err)
		}
		lastResult = dst
		p.progress(ctx, job.ID, (i+1)*90/total)
		log.Info("quality preset done", "job_id", job.ID, "preset", preset, "path", dst)
	}
	return lastResult, nil
}

// registerArtifact records a produced file in the catalog and mirrors it
// when a mirror is configured. If the catalog write fails the file stays
// on disk as an orphan; that is logged loudly and the job will fail so
// callers do not trust the result.
func (p *Pool) registerArtifact(ctx context.Context, video *model.Video, dst string, kind model.TransformKind, rawConfig json.RawMessage, quality *string) (*model.ProcessedVideo, error) {
	info, err := os.Stat(dst)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, err, "stat output %s", dst)
	}
	if info.Size() == 0 {
		return nil, errs.New(errs.Tool, "output %s is empty", dst)
	}

	artifact := &model.ProcessedVideo{
		OriginalVideoID:  video.ID,
		Filename:         filepath.Base(dst),
		FilePath:         dst,
		FileSize:         info.Size(),
		ProcessingType:   kind,
		ProcessingConfig: rawConfig,
		Quality:          quality,
	}
	if err := p.deps.Catalog.RegisterArtifact(ctx, artifact); err != nil {
		p.deps.Logger.Error("orphaned artifact: file exists on disk but catalog write failed",
			"path", dst, "video_id", video.ID, "error", err)
		return nil, err
	}

	if p.deps.Mirror != nil {
		if err := p.deps.Mirror.Upload(ctx, dst); err != nil {
			// The local file is the source of truth; mirroring is best
			// effort and never fails the job.
			p.deps.Logger.Warn("artifact mirror upload failed", "path", dst, "error", err)
		}
	}
	return artifact, nil
}
