// ABOUTME: Builds a registry and its providers from configuration
// ABOUTME: Chooses the capture, identification chain, and cover stack
package registry

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harper/radio-nowplaying/internal/application/config"
	"github.com/harper/radio-nowplaying/internal/domain"
	"github.com/harper/radio-nowplaying/internal/infrastructure/capture"
	"github.com/harper/radio-nowplaying/internal/infrastructure/cover"
	"github.com/harper/radio-nowplaying/internal/infrastructure/identify"
	"github.com/harper/radio-nowplaying/internal/infrastructure/source"
)

// NewFromConfig wires the production providers. cache may be nil, which
// disables the persistent cover cache.
func NewFromConfig(cfg *config.Config, cache cover.Store, log logrus.FieldLogger) (*Registry, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if err := os.MkdirAll(cfg.Monitor.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	var resolver capture.PageResolver
	if cfg.Capture.ResolvePages {
		resolver = capture.NewYTDLP()
	}

	ffmpeg := capture.NewFFmpeg(capture.FFmpegConfig{
		Binary:     cfg.Capture.FFmpeg,
		Format:     cfg.Capture.Format,
		SampleRate: cfg.Capture.SampleRate,
		Grace:      cfg.CaptureGrace(),
		MinClip:    time.Duration(cfg.Capture.MinClipMs) * time.Millisecond,
		Resolver:   resolver,
	}, log)

	providers := identifiers(cfg)
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name)
	}

	log.WithFields(logrus.Fields{
		"identify":    strings.Join(names, ","),
		"format":      cfg.Capture.Format,
		"clip":        cfg.ClipLength().String(),
		"interval":    cfg.Interval().String(),
		"cover_cache": cfg.UseCoverCache() && cache != nil,
	}).Info("registry configured")

	return New(Deps{
		Capturer:   ffmpeg,
		Identifier: identify.NewChain(log, providers...),
		Covers:     covers(cfg, cache, log),
	}, Options{
		ClipLength:  cfg.ClipLength(),
		Interval:    cfg.Interval(),
		WorkDir:     cfg.Monitor.WorkDir,
		ArtifactExt: ffmpeg.Ext(),
	}, log), nil
}

func identifiers(cfg *config.Config) []identify.Provider {
	timeout := time.Duration(cfg.Identify.TimeoutMs) * time.Millisecond
	icy := identify.Provider{
		Name:       "icy",
		Identifier: identify.NewICY(source.NewHTTP(source.HTTPConfig{}), timeout),
	}

	var providers []identify.Provider
	switch strings.ToLower(cfg.Identify.Provider) {
	case "icy":
		return []identify.Provider{icy}
	case "acoustid":
		providers = append(providers, identify.Provider{
			Name: "acoustid",
			Identifier: identify.NewAcoustID(identify.AcoustIDConfig{
				URL:       cfg.Identify.AcoustID.URL,
				ClientKey: cfg.Identify.AcoustID.ClientKey,
				FPCalc:    cfg.Identify.AcoustID.FPCalc,
				Timeout:   timeout,
			}),
		})
	default:
		providers = append(providers, identify.Provider{
			Name: "audd",
			Identifier: identify.NewAudD(identify.AudDConfig{
				URL:      cfg.Identify.AudD.URL,
				APIToken: cfg.Identify.AudD.APIToken,
				Timeout:  timeout,
			}),
		})
	}

	if cfg.UseICYFallback() {
		providers = append(providers, icy)
	}
	return providers
}

func covers(cfg *config.Config, cache cover.Store, log logrus.FieldLogger) domain.CoverResolver {
	var resolver domain.CoverResolver = cover.NewDeduped(cover.NewITunes(cover.ITunesConfig{
		URL:     cfg.Cover.URL,
		Timeout: time.Duration(cfg.Cover.TimeoutMs) * time.Millisecond,
		Size:    cfg.Cover.Size,
	}))

	if cfg.UseCoverCache() && cache != nil {
		resolver = cover.NewCached(resolver, cache, log)
	}
	return resolver
}
