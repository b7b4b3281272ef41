// ABOUTME: YAML configuration parsing, defaults, and validation
// ABOUTME: Defines listen address, monitor timing, provider endpoints, and the station catalog
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen   ListenConfig    `yaml:"listen"`
	Monitor  MonitorConfig   `yaml:"monitor"`
	Capture  CaptureConfig   `yaml:"capture"`
	Identify IdentifyConfig  `yaml:"identify"`
	Cover    CoverConfig     `yaml:"cover"`
	Database DatabaseConfig  `yaml:"database"`
	Stations []StationConfig `yaml:"stations"`
	Logging  LoggingConfig   `yaml:"logging"`
}

type ListenConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type MonitorConfig struct {
	ClipSeconds         int    `yaml:"clip_seconds"`
	CaptureGraceSeconds int    `yaml:"capture_grace_seconds"`
	IntervalSeconds     int    `yaml:"interval_seconds"`
	WorkDir             string `yaml:"work_dir"`
}

type CaptureConfig struct {
	FFmpeg       string `yaml:"ffmpeg"`
	Format       string `yaml:"format"`
	SampleRate   int    `yaml:"sample_rate"`
	MinClipMs    int    `yaml:"min_clip_ms"`
	ResolvePages bool   `yaml:"resolve_pages"`
}

type IdentifyConfig struct {
	Provider    string         `yaml:"provider"`
	TimeoutMs   int            `yaml:"timeout_ms"`
	ICYFallback *bool          `yaml:"icy_fallback"`
	AudD        AudDConfig     `yaml:"audd"`
	AcoustID    AcoustIDConfig `yaml:"acoustid"`
}

type AudDConfig struct {
	URL      string `yaml:"url"`
	APIToken string `yaml:"api_token"`
}

type AcoustIDConfig struct {
	URL       string `yaml:"url"`
	ClientKey string `yaml:"client_key"`
	FPCalc    string `yaml:"fpcalc"`
}

type CoverConfig struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Size      int    `yaml:"size"`
	Cache     *bool  `yaml:"cache"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type StationConfig struct {
	Name   string `yaml:"name"`
	Stream string `yaml:"stream"`
	Img    string `yaml:"img"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a config with every default applied and no stations.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Listen.Host == "" {
		c.Listen.Host = "0.0.0.0"
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = 5000
	}
	if len(c.Listen.AllowedOrigins) == 0 {
		c.Listen.AllowedOrigins = []string{"*"}
	}

	if c.Monitor.ClipSeconds == 0 {
		c.Monitor.ClipSeconds = 12
	}
	if c.Monitor.CaptureGraceSeconds == 0 {
		c.Monitor.CaptureGraceSeconds = 25
	}
	if c.Monitor.IntervalSeconds == 0 {
		c.Monitor.IntervalSeconds = 30
	}
	if c.Monitor.WorkDir == "" {
		c.Monitor.WorkDir = os.TempDir()
	}

	if c.Capture.FFmpeg == "" {
		c.Capture.FFmpeg = "ffmpeg"
	}
	if c.Capture.Format == "" {
		c.Capture.Format = "wav"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 44100
	}
	if c.Capture.MinClipMs == 0 {
		c.Capture.MinClipMs = 2000
	}

	if c.Identify.Provider == "" {
		c.Identify.Provider = "audd"
	}
	if c.Identify.ICYFallback == nil {
		c.Identify.ICYFallback = boolPtr(true)
	}
	if c.Identify.TimeoutMs == 0 {
		c.Identify.TimeoutMs = 20000
	}
	if c.Identify.AudD.URL == "" {
		c.Identify.AudD.URL = "https://api.audd.io/"
	}
	if c.Identify.AudD.APIToken == "" {
		c.Identify.AudD.APIToken = os.Getenv("AUDD_API_TOKEN")
	}
	if c.Identify.AcoustID.URL == "" {
		c.Identify.AcoustID.URL = "https://api.acoustid.org/v2/lookup"
	}
	if c.Identify.AcoustID.ClientKey == "" {
		c.Identify.AcoustID.ClientKey = os.Getenv("ACOUSTID_CLIENT_KEY")
	}
	if c.Identify.AcoustID.FPCalc == "" {
		c.Identify.AcoustID.FPCalc = "fpcalc"
	}

	if c.Cover.URL == "" {
		c.Cover.URL = "https://itunes.apple.com/search"
	}
	if c.Cover.TimeoutMs == 0 {
		c.Cover.TimeoutMs = 10000
	}
	if c.Cover.Size == 0 {
		c.Cover.Size = 600
	}
	if c.Cover.Cache == nil {
		c.Cover.Cache = boolPtr(true)
	}

	if c.Database.Path == "" {
		c.Database.Path = "nowplaying.sqlite3"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port out of range: %d", c.Listen.Port))
	}
	if c.Monitor.ClipSeconds < 0 {
		errs = append(errs, errors.New("monitor.clip_seconds must be positive"))
	}
	if c.Monitor.IntervalSeconds < 0 {
		errs = append(errs, errors.New("monitor.interval_seconds must be positive"))
	}

	switch c.Capture.Format {
	case "wav", "mp3":
	default:
		errs = append(errs, fmt.Errorf("capture.format must be wav or mp3, got %q", c.Capture.Format))
	}

	switch strings.ToLower(c.Identify.Provider) {
	case "audd", "acoustid", "icy":
	default:
		errs = append(errs, fmt.Errorf("identify.provider must be audd, acoustid or icy, got %q", c.Identify.Provider))
	}

	for i, st := range c.Stations {
		if strings.TrimSpace(st.Stream) == "" {
			errs = append(errs, fmt.Errorf("stations[%d]: stream required", i))
		}
		if strings.TrimSpace(st.Name) == "" {
			errs = append(errs, fmt.Errorf("stations[%d]: name required", i))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ClipLength() time.Duration {
	return time.Duration(c.Monitor.ClipSeconds) * time.Second
}

func (c *Config) CaptureGrace() time.Duration {
	return time.Duration(c.Monitor.CaptureGraceSeconds) * time.Second
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

func (c *Config) UseICYFallback() bool {
	return c.Identify.ICYFallback != nil && *c.Identify.ICYFallback
}

func (c *Config) UseCoverCache() bool {
	return c.Cover.Cache != nil && *c.Cover.Cache
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Host, c.Listen.Port)
}

func boolPtr(b bool) *bool {
	return &b
}
