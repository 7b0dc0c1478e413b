// Package extract samples still frames from video files with ffmpeg.
package extract

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/vidgrep/internal/ident"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the sampling interval in seconds.
	DefaultInterval = 1.0
	// DefaultJPEGQuality is the ffmpeg -q:v value for saved frames (2 is near-lossless).
	DefaultJPEGQuality = 2
)

// Frame is one sampled still: its position in the video and the JPEG written for it.
type Frame struct {
	Index     int
	Timestamp float64
	Path      string
}

// Extractor produces a finite, ordered sequence of frames for a video.
type Extractor interface {
	Frames(ctx context.Context, videoPath, outDir string) iter.Seq2[Frame, error]
}

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(lastLine(out)))
	}
	return out, nil
}

// FFmpegExtractor samples frames at a fixed interval using ffmpeg's fps filter.
type FFmpegExtractor struct {
	ffmpegPath  string
	ffprobePath string
	interval    float64
	quality     int
	run         Runner
	logger      *zap.Logger
}

// Option configures an FFmpegExtractor.
type Option func(*FFmpegExtractor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *FFmpegExtractor) { e.logger = l }
}

// WithRunner replaces the command runner (used by tests).
func WithRunner(r Runner) Option {
	return func(e *FFmpegExtractor) { e.run = r }
}

// WithBinaries sets the ffmpeg and ffprobe executables. Empty values keep the defaults.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(e *FFmpegExtractor) {
		if ffmpeg != "" {
			e.ffmpegPath = ffmpeg
		}
		if ffprobe != "" {
			e.ffprobePath = ffprobe
		}
	}
}

// NewFFmpegExtractor returns an extractor sampling every interval seconds.
// Non-positive interval or quality fall back to the defaults.
func NewFFmpegExtractor(interval float64, quality int, opts ...Option) *FFmpegExtractor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	e := &FFmpegExtractor{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		interval:    interval,
		quality:     quality,
		run:         ExecRunner,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Interval returns the sampling interval in seconds.
func (e *FFmpegExtractor) Interval() float64 {
	return e.interval
}

// Duration returns the container duration in seconds as reported by ffprobe.
func (e *FFmpegExtractor) Duration(ctx context.Context, videoPath string) (float64, error) {
	out, err := e.run(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return 0, fmt.Errorf("read duration: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("read duration: parse %q: %w", strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

// Frames runs ffmpeg into a staging directory under outDir, then yields each frame after
// renaming it to its final name. The sequence stops at the first error.
func (e *FFmpegExtractor) Frames(ctx context.Context, videoPath, outDir string) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		if _, err := os.Stat(videoPath); err != nil {
			yield(Frame{}, fmt.Errorf("open video: %w", err))
			return
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			yield(Frame{}, fmt.Errorf("create frames dir: %w", err))
			return
		}
		staging, err := os.MkdirTemp(outDir, ".extract-")
		if err != nil {
			yield(Frame{}, fmt.Errorf("create staging dir: %w", err))
			return
		}
		defer os.RemoveAll(staging)

		e.logger.Debug("extracting frames",
			zap.String("video", videoPath),
			zap.Float64("interval", e.interval))

		_, err = e.run(ctx, e.ffmpegPath,
			"-hide_banner", "-loglevel", "error", "-nostdin",
			"-i", videoPath,
			"-vf", "fps=1/"+strconv.FormatFloat(e.interval, 'f', -1, 64),
			"-q:v", strconv.Itoa(e.quality),
			filepath.Join(staging, "%06d.jpg"),
		)
		if err != nil {
			yield(Frame{}, fmt.Errorf("extract frames: %w", err))
			return
		}

		names, err := stagedFrames(staging)
		if err != nil {
			yield(Frame{}, err)
			return
		}
		videoID := ident.VideoID(videoPath)
		for i, name := range names {
			if err := ctx.Err(); err != nil {
				yield(Frame{}, err)
				return
			}
			ts := float64(i) * e.interval
			final := filepath.Join(outDir, FrameName(videoID, i, ts))
			if err := os.Rename(filepath.Join(staging, name), final); err != nil {
				yield(Frame{}, fmt.Errorf("store frame: %w", err))
				return
			}
			if !yield(Frame{Index: i, Timestamp: ts, Path: final}, nil) {
				return
			}
		}
		e.logger.Debug("frames extracted", zap.String("video", videoPath), zap.Int("count", len(names)))
	}
}

// FrameName returns the stored file name for the n-th frame of a video.
func FrameName(videoID string, n int, timestamp float64) string {
	return fmt.Sprintf("%s_frame_%06d_t%.2f.jpg", videoID, n, timestamp)
}

func stagedFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		if !ent.IsDir() && strings.HasSuffix(ent.Name(), ".jpg") {
			names = append(names, ent.Name())
		}
	}
	if len(names) == 0 {
		return nil, errors.New("extract frames: ffmpeg produced no frames")
	}
	// Zero-padded names sort in frame order.
	sort.Strings(names)
	return names, nil
}

func lastLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
