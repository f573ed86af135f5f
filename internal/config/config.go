// Package config loads server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/medley-server/medley/internal/media"
)

// Source is one statically configured media source: a local folder for the
// audio/video/picture roots, a feed URL for the podcast root.
type Source struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Path  string `yaml:"path,omitempty"`
	URL   string `yaml:"url,omitempty"`
}

// Config holds all server configuration.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Cache-Control/Expires lifetime for static resources. 0 disables the
	// cache headers entirely.
	HTTPCacheSeconds int `yaml:"http_cache_seconds"`

	PodcastCacheMaxElements int `yaml:"podcast_cache_max_elements"`
	PodcastCacheExpireHours int `yaml:"podcast_cache_expire_hours"`
	FeedTimeoutSeconds      int `yaml:"feed_timeout_seconds"`
	SweepIntervalMinutes    int `yaml:"sweep_interval_minutes"`

	AudioFolders   []Source `yaml:"audio_folders"`
	VideoFolders   []Source `yaml:"video_folders"`
	PictureFolders []Source `yaml:"picture_folders"`
	Podcasts       []Source `yaml:"podcasts"`
}

// Load reads configuration from path (optional, "" skips the file) and
// applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:              ":8085",
		MetricsAddr:             ":9095",
		LogLevel:                "info",
		LogFormat:               "json",
		HTTPCacheSeconds:        3600,
		PodcastCacheMaxElements: 50,
		PodcastCacheExpireHours: 2,
		FeedTimeoutSeconds:      30,
		SweepIntervalMinutes:    15,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ListenAddr = envOr("MEDLEY_LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = envOr("MEDLEY_METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = envOr("MEDLEY_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("MEDLEY_LOG_FORMAT", cfg.LogFormat)
	cfg.HTTPCacheSeconds = envInt("MEDLEY_HTTP_CACHE_SECONDS", cfg.HTTPCacheSeconds)
	cfg.PodcastCacheMaxElements = envInt("MEDLEY_PODCAST_CACHE_MAX_ELEMENTS", cfg.PodcastCacheMaxElements)
	cfg.PodcastCacheExpireHours = envInt("MEDLEY_PODCAST_CACHE_EXPIRE_HOURS", cfg.PodcastCacheExpireHours)
	cfg.FeedTimeoutSeconds = envInt("MEDLEY_FEED_TIMEOUT_SECONDS", cfg.FeedTimeoutSeconds)
	cfg.SweepIntervalMinutes = envInt("MEDLEY_SWEEP_INTERVAL_MINUTES", cfg.SweepIntervalMinutes)

	cfg.assignIDs()
	return cfg, nil
}

// assignIDs gives every configured source a stable id when the file omitted
// one. Seeded ids must survive restarts, so they derive from position, not
// randomness.
func (c *Config) assignIDs() {
	fill := func(prefix string, sources []Source) {
		for i := range sources {
			if sources[i].ID == "" {
				sources[i].ID = fmt.Sprintf("%s-%d", prefix, i+1)
			}
		}
	}
	fill("audio", c.AudioFolders)
	fill("video", c.VideoFolders)
	fill("picture", c.PictureFolders)
	fill("podcast", c.Podcasts)
}

// SourcesFor returns the configured sources under a root node id.
func (c *Config) SourcesFor(rootID string) []Source {
	switch rootID {
	case media.RootAudioID:
		return c.AudioFolders
	case media.RootVideoID:
		return c.VideoFolders
	case media.RootPictureID:
		return c.PictureFolders
	case media.RootPodcastID:
		return c.Podcasts
	default:
		return nil
	}
}

// LocalRoots returns every configured local folder path, for the filesystem
// watcher.
func (c *Config) LocalRoots() []string {
	var out []string
	for _, group := range [][]Source{c.AudioFolders, c.VideoFolders, c.PictureFolders} {
		for _, s := range group {
			if s.Path != "" {
				out = append(out, s.Path)
			}
		}
	}
	return out
}

// FeedTimeout returns the per-fetch feed timeout.
func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.FeedTimeoutSeconds) * time.Second
}

// PodcastTTL returns the podcast cache entry lifetime.
func (c *Config) PodcastTTL() time.Duration {
	return time.Duration(c.PodcastCacheExpireHours) * time.Hour
}

// SweepInterval returns the background sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
