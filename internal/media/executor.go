// Package media drives the external ffmpeg/ffprobe binaries. Each
// operation validates its inputs before any process is spawned, then
// treats success as a clean exit plus a non-empty destination file.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"videoforge/internal/config"
	"videoforge/internal/errs"
	"videoforge/internal/model"
)

const maxDiagnosticLen = 1024

type Executor struct {
	runner       Runner
	ffmpegPath   string
	ffprobePath  string
	assetsDir    string
	runTimeout   time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger
}

func NewExecutor(cfg config.FFmpegConfig, assetsDir string, runner Runner, logger *slog.Logger) *Executor {
	return &Executor{
		runner:       runner,
		ffmpegPath:   cfg.FFmpegPath,
		ffprobePath:  cfg.FFprobePath,
		assetsDir:    assetsDir,
		runTimeout:   cfg.RunTimeout,
		probeTimeout: cfg.ProbeTimeout,
		logger:       logger,
	}
}

// ProbeInfo carries the source metadata ffprobe reports.
type ProbeInfo struct {
	Duration float64
	Width    int
	Height   int
	Format   string
	Codec    string
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

func (e *Executor) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	stdout, stderr, err := e.runner.Run(ctx, e.ffprobePath, args)
	if err != nil {
		return nil, errs.Wrap(errs.Tool, err, "ffprobe %s: %s", path, diagnostic(stderr))
	}
	var out probeOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, errs.Wrap(errs.Tool, err, "parse ffprobe output for %s", path)
	}
	info := &ProbeInfo{Format: out.Format.FormatName}
	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			info.Codec = s.CodecName
			return info, nil
		}
	}
	return nil, errs.New(errs.Tool, "no video stream found in %s", path)
}

// Trim produces the [start, end) cut of src. When the source duration is
// known it bounds end before anything is spawned.
func (e *Executor) Trim(ctx context.Context, src, dst string, cfg model.TrimConfig, knownDuration *float64) error {
	if cfg.StartTime < 0 {
		return errs.New(errs.Validation, "start time must be >= 0")
	}
	if cfg.EndTime <= cfg.StartTime {
		return errs.New(errs.Validation, "end time must be greater than start time")
	}
	if knownDuration != nil && cfg.EndTime > *knownDuration {
		return errs.New(errs.Validation, "end time cannot exceed video duration (%.2fs)", *knownDuration)
	}

	args := []string{
		"-i", src,
		"-ss", formatSeconds(cfg.StartTime),
		"-t", formatSeconds(cfg.EndTime - cfg.StartTime),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		dst,
		"-y",
	}
	return e.runFFmpeg(ctx, dst, args)
}

var fontPaths = map[string]string{
	"en": "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"hi": "/usr/share/fonts/truetype/noto/NotoSansDevanagari-Regular.ttf",
	"ta": "/usr/share/fonts/truetype/noto/NotoSansTamil-Regular.ttf",
	"te": "/usr/share/fonts/truetype/noto/NotoSansTelugu-Regular.ttf",
}

// FontForLanguage falls back to the default font for unknown codes rather
// than failing the transform.
func FontForLanguage(language string) string {
	if path, ok := fontPaths[language]; ok {
		return path
	}
	return fontPaths["en"]
}

// Overlay burns a text, image or video element onto src. For image and
// video overlays Content names a file under the assets directory and it
// must exist before invocation.
func (e *Executor) Overlay(ctx context.Context, src, dst string, cfg model.OverlayConfig) error {
	if cfg.StartTime < 0 {
		return errs.New(errs.Validation, "overlay start time must be >= 0")
	}
	if cfg.EndTime != nil && *cfg.EndTime <= cfg.StartTime {
		return errs.New(errs.Validation, "overlay end time must be greater than start time")
	}

	switch cfg.OverlayType {
	case "text":
		return e.textOverlay(ctx, src, dst, cfg)
	case "image", "video":
		assetPath, err := e.resolveAsset(cfg.Content)
		if err != nil {
			return err
		}
		return e.assetOverlay(ctx, src, dst, assetPath, cfg)
	default:
		return errs.New(errs.Validation, "unsupported overlay type: %s", cfg.OverlayType)
	}
}

func (e *Executor) textOverlay(ctx context.Context, src, dst string, cfg model.OverlayConfig) error {
	fontSize := cfg.FontSize
	if fontSize <= 0 {
		fontSize = 24
	}
	fontColor := cfg.FontColor
	if fontColor == "" {
		fontColor = "white"
	}

	drawtext := fmt.Sprintf("drawtext=text='%s':x=%d:y=%d:fontsize=%d:fontcolor=%s:fontfile=%s",
		escapeDrawtext(cfg.Content), cfg.PositionX, cfg.PositionY, fontSize, fontColor,
		FontForLanguage(cfg.Language))
	if cond := enableCondition(cfg.StartTime, cfg.EndTime); cond != "" {
		drawtext += ":" + cond
	}

	args := []string{
		"-i", src,
		"-vf", drawtext,
		"-c:a", "copy",
		dst,
		"-y",
	}
	return e.runFFmpeg(ctx, dst, args)
}

func (e *Executor) assetOverlay(ctx context.Context, src, dst, assetPath string, cfg model.OverlayConfig) error {
	filter := fmt.Sprintf("[1:v]scale=-1:-1[overlay]; [0:v][overlay]overlay=%d:%d", cfg.PositionX, cfg.PositionY)
	if cond := enableCondition(cfg.StartTime, cfg.EndTime); cond != "" {
		filter += ":" + cond
	}

	args := []string{
		"-i", src,
		"-i", assetPath,
		"-filter_complex", filter,
		"-c:a", "copy",
		dst,
		"-y",
	}
	return e.runFFmpeg(ctx, dst, args)
}

var watermarkPositions = map[string]string{
	"top-left":     "10:10",
	"top-right":    "main_w-overlay_w-10:10",
	"bottom-left":  "10:main_h-overlay_h-10",
	"bottom-right": "main_w-overlay_w-10:main_h-overlay_h-10",
	"center":       "(main_w-overlay_w)/2:(main_h-overlay_h)/2",
}

const defaultWatermarkPosition = "bottom-right"

// ValidatePosition accepts the empty string, which selects the default.
func ValidatePosition(position string) error {
	if position == "" {
		return nil
	}
	if _, ok := watermarkPositions[position]; !ok {
		return errs.New(errs.Validation, "unsupported watermark position: %s", position)
	}
	return nil
}

// Watermark stamps an asset image over src with the given corner and
// opacity. Position defaults to bottom-right; opacity defaults to 0.8.
func (e *Executor) Watermark(ctx context.Context, src, dst string, cfg model.WatermarkConfig) error {
	position := cfg.Position
	if position == "" {
		position = defaultWatermarkPosition
	}
	pos, ok := watermarkPositions[position]
	if !ok {
		return errs.New(errs.Validation, "unsupported watermark position: %s", position)
	}
	opacity := cfg.Opacity
	if opacity == 0 {
		opacity = 0.8
	}
	if opacity <= 0 || opacity > 1 {
		return errs.New(errs.Validation, "watermark opacity must be in (0, 1]")
	}
	assetPath, err := e.resolveAsset(cfg.WatermarkPath)
	if err != nil {
		return err
	}

	filter := fmt.Sprintf("[1:v]format=rgba,colorchannelmixer=aa=%g[watermark]; [0:v][watermark]overlay=%s", opacity, pos)
	args := []string{
		"-i", src,
		"-i", assetPath,
		"-filter_complex", filter,
		"-c:a", "copy",
		dst,
		"-y",
	}
	return e.runFFmpeg(ctx, dst, args)
}

type qualityPreset struct {
	Width   int
	Height  int
	Bitrate string
}

var qualityPresets = map[string]qualityPreset{
	"1080p": {Width: 1920, Height: 1080, Bitrate: "5M"},
	"720p":  {Width: 1280, Height: 720, Bitrate: "2.5M"},
	"480p":  {Width: 854, Height: 480, Bitrate: "1M"},
}

// PresetNames lists the known quality presets, sorted for stable messages.
func PresetNames() []string {
	names := make([]string, 0, len(qualityPresets))
	for name := range qualityPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidatePresets rejects the whole request on any unknown preset, before
// a single subprocess is spawned.
func ValidatePresets(names []string) error {
	if len(names) == 0 {
		return errs.New(errs.Validation, "at least one quality preset is required")
	}
	var invalid []string
	for _, name := range names {
		if _, ok := qualityPresets[name]; !ok {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return errs.New(errs.Validation, "invalid qualities: %s (valid options: %s)",
			strings.Join(invalid, ", "), strings.Join(PresetNames(), ", "))
	}
	return nil
}

// Quality re-encodes src at one named preset from the static table.
func (e *Executor) Quality(ctx context.Context, src, dst, preset string) error {
	p, ok := qualityPresets[preset]
	if !ok {
		return errs.New(errs.Validation, "unsupported quality: %s", preset)
	}

	args := []string{
		"-i", src,
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-b:v", p.Bitrate,
		"-c:v", "libx264",
		"-preset", "medium",
		"-c:a", "aac",
		dst,
		"-y",
	}
	return e.runFFmpeg(ctx, dst, args)
}

// runFFmpeg invokes the tool under the configured deadline and classifies
// the outcome. Stderr is preserved (trimmed) as the diagnostic.
func (e *Executor) runFFmpeg(ctx context.Context, dst string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	start := time.Now()
	_, stderr, err := e.runner.Run(ctx, e.ffmpegPath, args)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errs.Wrap(errs.Tool, err, "ffmpeg timed out after %s", e.runTimeout)
		}
		return errs.Wrap(errs.Tool, err, "ffmpeg failed: %s", diagnostic(stderr))
	}

	info, err := os.Stat(dst)
	if err != nil || info.Size() == 0 {
		return errs.New(errs.Tool, "ffmpeg exited cleanly but produced no output at %s", dst)
	}
	e.logger.Debug("ffmpeg finished", "dst", dst, "bytes", info.Size(), "took", time.Since(start))
	return nil
}

// resolveAsset maps a request-supplied asset name onto the assets
// directory and confirms the file exists. Path traversal out of the
// directory is rejected.
func (e *Executor) resolveAsset(name string) (string, error) {
	if name == "" {
		return "", errs.New(errs.Validation, "asset name is required")
	}
	path := filepath.Join(e.assetsDir, filepath.Clean("/"+name))
	if _, err := os.Stat(path); err != nil {
		return "", errs.New(errs.Reference, "asset not found: %s", name)
	}
	return path, nil
}

func enableCondition(start float64, end *float64) string {
	if start <= 0 && end == nil {
		return ""
	}
	endExpr := "inf"
	if end != nil {
		endExpr = formatSeconds(*end)
	}
	return fmt.Sprintf("enable='between(t,%s,%s)'", formatSeconds(start), endExpr)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return replacer.Replace(text)
}

func diagnostic(stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	if len(msg) > maxDiagnosticLen {
		msg = msg[:maxDiagnosticLen]
	}
	return msg
}
