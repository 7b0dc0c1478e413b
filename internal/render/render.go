// Package render turns search results into viewable artifacts: a short mp4 clip around the
// matched moment and a JPEG thumbnail, both named by the result identifier.
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hyperjump/vidgrep/internal/extract"
	"go.uber.org/zap"
)

// DefaultClipSeconds is the clip length centred on the matched timestamp.
const DefaultClipSeconds = 10.0

// DefaultExtensions are the video extensions tried when resolving a video by ID.
var DefaultExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv"}

// Config holds output locations and clip settings.
type Config struct {
	ResultsDir      string // thumbnails: <ResultsDir>/<id>.jpg
	ResultsVideoDir string // clips: <ResultsVideoDir>/<id>.mp4
	VideosDir       string // fallback location for source videos
	Extensions      []string
	ClipSeconds     float64
	FFmpegPath      string
}

// Artifacts reports where a result's clip and thumbnail live and whether each exists.
type Artifacts struct {
	ClipPath       string
	ImagePath      string
	ClipAvailable  bool
	ImageAvailable bool
}

// Renderer produces artifacts for a search result. Failures are reported through the
// returned Artifacts flags and error; callers treat rendering as best-effort.
type Renderer interface {
	Render(ctx context.Context, req Request) (Artifacts, error)
	Artifacts(id string) Artifacts
}

// Request describes one result to render.
type Request struct {
	ID        string
	VideoID   string
	VideoPath string // hint; may be stale or empty
	FramePath string
	Timestamp float64
}

// FFmpegRenderer cuts clips and writes thumbnails with ffmpeg.
type FFmpegRenderer struct {
	cfg    Config
	run    extract.Runner
	logger *zap.Logger
}

// Option configures an FFmpegRenderer.
type Option func(*FFmpegRenderer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *FFmpegRenderer) { r.logger = l }
}

// WithRunner replaces the command runner (used by tests).
func WithRunner(run extract.Runner) Option {
	return func(r *FFmpegRenderer) { r.run = run }
}

// NewFFmpegRenderer returns a renderer writing into cfg's result directories.
func NewFFmpegRenderer(cfg Config, opts ...Option) *FFmpegRenderer {
	if cfg.ClipSeconds <= 0 {
		cfg.ClipSeconds = DefaultClipSeconds
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	r := &FFmpegRenderer{cfg: cfg, run: extract.ExecRunner, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ClipPath returns the clip location for a result identifier.
func (r *FFmpegRenderer) ClipPath(id string) string {
	return filepath.Join(r.cfg.ResultsVideoDir, id+".mp4")
}

// ImagePath returns the thumbnail location for a result identifier.
func (r *FFmpegRenderer) ImagePath(id string) string {
	return filepath.Join(r.cfg.ResultsDir, id+".jpg")
}

// Artifacts checks which artifacts already exist for id.
func (r *FFmpegRenderer) Artifacts(id string) Artifacts {
	a := Artifacts{ClipPath: r.ClipPath(id), ImagePath: r.ImagePath(id)}
	a.ClipAvailable = nonEmptyFile(a.ClipPath)
	a.ImageAvailable = nonEmptyFile(a.ImagePath)
	return a
}

// ResolveVideoPath returns the source video for videoID. The hint is tried first, then
// <VideosDir>/<videoID><ext> for each configured extension.
func (r *FFmpegRenderer) ResolveVideoPath(videoID, hint string) (string, bool) {
	if hint != "" && regularFile(hint) {
		return hint, true
	}
	if r.cfg.VideosDir == "" {
		return "", false
	}
	for _, ext := range r.cfg.Extensions {
		candidate := filepath.Join(r.cfg.VideosDir, videoID+ext)
		if regularFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Render writes the thumbnail and clip for req. Existing artifacts are reused. The
// returned error describes the first failure; the Artifacts still report what exists.
func (r *FFmpegRenderer) Render(ctx context.Context, req Request) (Artifacts, error) {
	a := r.Artifacts(req.ID)
	var firstErr error

	if !a.ImageAvailable {
		if err := r.writeThumbnail(req.FramePath, a.ImagePath); err != nil {
			firstErr = err
		} else {
			a.ImageAvailable = true
		}
	}

	if !a.ClipAvailable {
		if err := r.writeClip(ctx, req, a.ClipPath); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			r.logger.Debug("clip not rendered", zap.String("id", req.ID), zap.Error(err))
		}
		a.ClipAvailable = nonEmptyFile(a.ClipPath)
	}
	return a, firstErr
}

func (r *FFmpegRenderer) writeThumbnail(framePath, dst string) error {
	if framePath == "" {
		return fmt.Errorf("thumbnail: no frame path")
	}
	src, err := os.Open(framePath)
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	defer src.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("thumbnail: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("thumbnail: %w", err)
	}
	return os.Rename(tmp, dst)
}

func (r *FFmpegRenderer) writeClip(ctx context.Context, req Request, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("clip: %w", err)
	}
	seconds := formatSeconds(r.cfg.ClipSeconds)
	if video, ok := r.ResolveVideoPath(req.VideoID, req.VideoPath); ok {
		start := max(0, req.Timestamp-r.cfg.ClipSeconds/2)
		err := r.encodeClip(ctx, dst,
			"-ss", formatSeconds(start),
			"-i", video,
			"-t", seconds,
			"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
			"-an", "-movflags", "+faststart",
		)
		if err == nil {
			return nil
		}
		r.logger.Debug("clip cut failed, falling back to still frame", zap.String("video", video), zap.Error(err))
	}
	if req.FramePath == "" || !regularFile(req.FramePath) {
		return fmt.Errorf("clip: video %q not found and no frame to fall back on", req.VideoID)
	}
	err := r.encodeClip(ctx, dst,
		"-loop", "1",
		"-i", req.FramePath,
		"-t", seconds,
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
	)
	if err != nil {
		return fmt.Errorf("clip: %w", err)
	}
	return nil
}

// encodeClip runs ffmpeg into a temporary file next to dst and renames it into place, so
// an interrupted encode never leaves a partial clip at dst.
func (r *FFmpegRenderer) encodeClip(ctx context.Context, dst string, args ...string) error {
	tmp := dst + ".tmp"
	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}, args...)
	full = append(full, "-f", "mp4", tmp)
	if _, err := r.run(ctx, r.cfg.FFmpegPath, full...); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func regularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
