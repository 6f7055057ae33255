package internal

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at startup. Loaded from a YAML
// file with IMVID_* environment overrides on top.
type Config struct {
	Listen               string  `yaml:"listen" json:"listen"`
	YtDlpPath            string  `yaml:"ytdlpPath" json:"ytdlpPath"`
	FfmpegPath           string  `yaml:"ffmpegPath" json:"ffmpegPath"`
	CookiesDir           string  `yaml:"cookiesDir" json:"cookiesDir"`
	ArtifactDir          string  `yaml:"artifactDir" json:"artifactDir"`
	LogFile              string  `yaml:"logFile" json:"logFile"`
	LogLevel             string  `yaml:"logLevel" json:"logLevel"`
	MetadataTTLMinutes   int     `yaml:"metadataTtlMinutes" json:"metadataTtlMinutes"`
	ArtifactTTLMinutes   int     `yaml:"artifactTtlMinutes" json:"artifactTtlMinutes"`
	ArtifactMaxMB        int64   `yaml:"artifactMaxMb" json:"artifactMaxMb"`
	ExtractConcurrency   int     `yaml:"extractConcurrency" json:"extractConcurrency"`
	TranscodeConcurrency int     `yaml:"transcodeConcurrency" json:"transcodeConcurrency"`
	SubprocessTimeoutSec int     `yaml:"subprocessTimeoutSec" json:"subprocessTimeoutSec"`
	QueueTimeoutSec      int     `yaml:"queueTimeoutSec" json:"queueTimeoutSec"`
	JanitorIntervalSec   int     `yaml:"janitorIntervalSec" json:"janitorIntervalSec"`
	PreviewSeconds       int     `yaml:"previewSeconds" json:"previewSeconds"`
	PreviewWidth         int     `yaml:"previewWidth" json:"previewWidth"`
	ExtractRatePerSec    float64 `yaml:"extractRatePerSec" json:"extractRatePerSec"`
	ExtractRateBurst     int     `yaml:"extractRateBurst" json:"extractRateBurst"`
	HistoryDBPath        string  `yaml:"historyDbPath" json:"historyDbPath"`
}

func DefaultConfig() Config {
	root := DefaultRoot()
	return Config{
		Listen:               ":8080",
		YtDlpPath:            "yt-dlp",
		FfmpegPath:           "ffmpeg",
		CookiesDir:           filepath.Join(root, "cookies"),
		ArtifactDir:          filepath.Join(root, "artifacts"),
		LogFile:              filepath.Join(root, "logs", "imvid.txt"),
		LogLevel:             INFO,
		MetadataTTLMinutes:   60,
		ArtifactTTLMinutes:   240,
		ArtifactMaxMB:        512,
		ExtractConcurrency:   3,
		TranscodeConcurrency: 2,
		SubprocessTimeoutSec: 45,
		QueueTimeoutSec:      30,
		JanitorIntervalSec:   300,
		PreviewSeconds:       8,
		PreviewWidth:         480,
		ExtractRatePerSec:    5,
		ExtractRateBurst:     10,
		HistoryDBPath:        filepath.Join(root, "imvid.db"),
	}
}

// DefaultRoot is where config, logs, artifacts and the history DB live unless
// overridden.
func DefaultRoot() string {
	if v := os.Getenv("IMVID_ROOT"); v != "" {
		return v
	}
	return "/var/lib/imvid"
}

// LoadConfig reads the YAML config at path (creating it with defaults when
// missing), then applies environment overrides. A .env file is honored when
// present.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err == nil {
		if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
			return cfg, uerr
		}
	} else if os.IsNotExist(err) {
		if werr := WriteConfig(path, cfg); werr != nil {
			Logf(WARN, "Config", "Could not write default config to %s: %v", path, werr)
		}
	} else {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// WriteConfig persists the config as YAML.
func WriteConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IMVID_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("IMVID_YTDLP"); v != "" {
		cfg.YtDlpPath = v
	}
	if v := os.Getenv("IMVID_FFMPEG"); v != "" {
		cfg.FfmpegPath = v
	}
	if v := os.Getenv("IMVID_COOKIES_DIR"); v != "" {
		cfg.CookiesDir = v
	}
	if v := os.Getenv("IMVID_ARTIFACT_DIR"); v != "" {
		cfg.ArtifactDir = v
	}
	if v := os.Getenv("IMVID_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("IMVID_EXTRACT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExtractConcurrency = n
		}
	}
	if v := os.Getenv("IMVID_TRANSCODE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TranscodeConcurrency = n
		}
	}
	if v := os.Getenv("IMVID_METADATA_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MetadataTTLMinutes = n
		}
	}
}

func (c Config) MetadataTTL() time.Duration {
	return time.Duration(c.MetadataTTLMinutes) * time.Minute
}

func (c Config) ArtifactTTL() time.Duration {
	return time.Duration(c.ArtifactTTLMinutes) * time.Minute
}

func (c Config) ArtifactMaxBytes() int64 {
	return c.ArtifactMaxMB * 1024 * 1024
}

func (c Config) SubprocessTimeout() time.Duration {
	return time.Duration(c.SubprocessTimeoutSec) * time.Second
}

func (c Config) QueueTimeout() time.Duration {
	return time.Duration(c.QueueTimeoutSec) * time.Second
}

func (c Config) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSec) * time.Second
}
