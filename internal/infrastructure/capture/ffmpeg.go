// ABOUTME: ffmpeg-backed capture provider recording a fixed-length clip of a stream
// ABOUTME: Bounds each run with a timeout and keeps the tail of stderr for error reports
package capture

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harper/radio-nowplaying/internal/infrastructure/ring"
)

const stderrTailBytes = 4096

// PageResolver turns a web page address into a directly playable media URL.
type PageResolver interface {
	Handles(stream string) bool
	Resolve(ctx context.Context, page string) (string, error)
}

type FFmpegConfig struct {
	Binary     string
	Format     string
	SampleRate int
	Grace      time.Duration
	MinClip    time.Duration
	Resolver   PageResolver
}

type FFmpeg struct {
	cfg FFmpegConfig
	log logrus.FieldLogger
}

func NewFFmpeg(cfg FFmpegConfig, log logrus.FieldLogger) *FFmpeg {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Format == "" {
		cfg.Format = "wav"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Grace == 0 {
		cfg.Grace = 25 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &FFmpeg{cfg: cfg, log: log}
}

// Ext is the file extension of the clips this capturer writes.
func (f *FFmpeg) Ext() string {
	return "." + f.cfg.Format
}

func (f *FFmpeg) Capture(ctx context.Context, stream string, duration time.Duration, outputPath string) error {
	if duration <= 0 {
		return fmt.Errorf("invalid clip duration %s", duration)
	}

	ctx, cancel := context.WithTimeout(ctx, duration+f.cfg.Grace)
	defer cancel()

	input := stream
	if f.cfg.Resolver != nil && f.cfg.Resolver.Handles(stream) {
		resolved, err := f.cfg.Resolver.Resolve(ctx, stream)
		if err != nil {
			return fmt.Errorf("resolve page: %w", err)
		}
		f.log.WithFields(logrus.Fields{"stream": stream, "media": resolved}).Debug("resolved page to media url")
		input = resolved
	}

	stderr := ring.New(stderrTailBytes)
	cmd := exec.CommandContext(ctx, f.cfg.Binary, f.args(input, duration, outputPath)...)
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg: %w", ctxErr)
		}
		if tail := stderr.Tail(); tail != "" {
			return fmt.Errorf("ffmpeg failed: %w (%s)", err, tail)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	if err := Validate(outputPath, f.cfg.Format, f.cfg.MinClip); err != nil {
		return fmt.Errorf("validate clip: %w", err)
	}
	return nil
}

func (f *FFmpeg) args(input string, duration time.Duration, outputPath string) []string {
	secs := strconv.FormatFloat(duration.Seconds(), 'f', -1, 64)
	rate := strconv.Itoa(f.cfg.SampleRate)

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-t", secs,
		"-vn",
	}

	switch f.cfg.Format {
	case "mp3":
		args = append(args, "-acodec", "libmp3lame", "-ar", rate, "-ac", "2", "-f", "mp3")
	default:
		args = append(args, "-ac", "1", "-ar", rate, "-c:a", "pcm_s16le", "-f", "wav")
	}

	return append(args, outputPath)
}
