package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

const bytesPerMiB = 1024 * 1024

// Delivery modes. A deployment serves exactly one of them.
const (
	ModeAudio = "audio"
	ModeVideo = "video"
)

// Log output formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

type BotConfig struct {
	Language string `yaml:"language" env:"MEDIARELAY_BOT_LANGUAGE"`
	Mode     string `yaml:"mode" env:"MEDIARELAY_BOT_MODE"`
}

// AudioConfig fixes the yt-dlp post-processing used in audio mode.
type AudioConfig struct {
	Codec     string `yaml:"codec" env:"MEDIARELAY_AUDIO_CODEC"`
	Quality   string `yaml:"quality" env:"MEDIARELAY_AUDIO_QUALITY"`
	MaxSizeMB int64  `yaml:"max_size_mb" env:"MEDIARELAY_AUDIO_MAX_SIZE_MB"`
}

// VideoConfig fixes the yt-dlp container used in video/photo mode.
type VideoConfig struct {
	MergeFormat string `yaml:"merge_format" env:"MEDIARELAY_VIDEO_MERGE_FORMAT"`
	MaxSizeMB   int64  `yaml:"max_size_mb" env:"MEDIARELAY_VIDEO_MAX_SIZE_MB"`
}

type FetchConfig struct {
	DownloadDir string      `yaml:"download_dir" env:"MEDIARELAY_DOWNLOAD_DIR"`
	Executable  string      `yaml:"executable" env:"MEDIARELAY_YTDLP_PATH"`
	Workers     int         `yaml:"workers" env:"MEDIARELAY_FETCH_WORKERS"`
	Timeout     string      `yaml:"timeout" env:"MEDIARELAY_FETCH_TIMEOUT"`
	Audio       AudioConfig `yaml:"audio"`
	Video       VideoConfig `yaml:"video"`
}

// DefaultFetchTimeout bounds a single yt-dlp run.
const DefaultFetchTimeout = 10 * time.Minute

// GetTimeout returns the parsed fetch timeout.
// Falls back to DefaultFetchTimeout if not configured or invalid.
func (c *FetchConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return DefaultFetchTimeout
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultFetchTimeout
	}
	return d
}

// AudioLimitBytes returns the audio size ceiling in bytes.
func (c *FetchConfig) AudioLimitBytes() int64 {
	return c.Audio.MaxSizeMB * bytesPerMiB
}

// VideoLimitBytes returns the video size ceiling in bytes.
func (c *FetchConfig) VideoLimitBytes() int64 {
	return c.Video.MaxSizeMB * bytesPerMiB
}

type JanitorConfig struct {
	Enabled          bool   `yaml:"enabled" env:"MEDIARELAY_JANITOR_ENABLED"`
	Schedule         string `yaml:"schedule" env:"MEDIARELAY_JANITOR_SCHEDULE"`
	MaxFileAge       string `yaml:"max_file_age" env:"MEDIARELAY_JANITOR_MAX_FILE_AGE"`
	JournalRetention string `yaml:"journal_retention" env:"MEDIARELAY_JANITOR_JOURNAL_RETENTION"`
}

const (
	DefaultMaxFileAge       = 1 * time.Hour
	DefaultJournalRetention = 30 * 24 * time.Hour
)

// GetMaxFileAge returns the age after which leftover downloads are swept.
func (c *JanitorConfig) GetMaxFileAge() time.Duration {
	return parseDurationOr(c.MaxFileAge, DefaultMaxFileAge)
}

// GetJournalRetention returns how long delivery journal rows are kept.
// Zero or negative disables pruning.
func (c *JanitorConfig) GetJournalRetention() time.Duration {
	return parseDurationOr(c.JournalRetention, DefaultJournalRetention)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

type Config struct {
	Log struct {
		Level  string `yaml:"level" env:"MEDIARELAY_LOG_LEVEL"`
		Format string `yaml:"format" env:"MEDIARELAY_LOG_FORMAT"`
	} `yaml:"log"`
	Server struct {
		ListenPort string `yaml:"listen_port" env:"MEDIARELAY_SERVER_PORT"`
	} `yaml:"server"`
	Telegram struct {
		Token         string `yaml:"token" env:"MEDIARELAY_TELEGRAM_TOKEN"`
		APIURL        string `yaml:"api_url" env:"MEDIARELAY_TELEGRAM_API_URL"`
		WebhookURL    string `yaml:"webhook_url" env:"MEDIARELAY_TELEGRAM_WEBHOOK_URL"`
		WebhookPath   string // Auto-generated from token hash (not configurable)
		WebhookSecret string // Auto-generated from token hash (not configurable)
		ProxyURL      string `yaml:"proxy_url" env:"MEDIARELAY_TELEGRAM_PROXY_URL"`
	} `yaml:"telegram"`
	Bot      BotConfig   `yaml:"bot"`
	Fetch    FetchConfig `yaml:"fetch"`
	Database struct {
		Path string `yaml:"path" env:"MEDIARELAY_DATABASE_PATH"`
	} `yaml:"database"`
	Janitor JanitorConfig `yaml:"janitor"`
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user config on top.
// Finally, it overrides values with environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			expandedData := []byte(os.ExpandEnv(string(data)))

			// Unmarshal user config on top of defaults (merges non-zero values)
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads the embedded default configuration.
func LoadDefault() (*Config, error) {
	return Load("")
}

// DefaultConfigBytes returns the raw embedded default configuration.
// Useful for generating example config files.
func DefaultConfigBytes() []byte {
	return defaultConfig
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	switch c.Log.Format {
	case "", LogFormatJSON, LogFormatText:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", LogFormatJSON, LogFormatText, c.Log.Format))
	}

	if c.Bot.Mode != ModeAudio && c.Bot.Mode != ModeVideo {
		errs = append(errs, fmt.Errorf("bot.mode must be %q or %q, got %q", ModeAudio, ModeVideo, c.Bot.Mode))
	}

	if c.Fetch.DownloadDir == "" {
		errs = append(errs, errors.New("fetch.download_dir is required"))
	}
	if c.Fetch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("fetch.workers must be positive, got %d", c.Fetch.Workers))
	}
	if c.Fetch.Timeout != "" {
		if d, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("fetch.timeout: invalid duration format %q: %w", c.Fetch.Timeout, err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("fetch.timeout must be positive, got %s", d))
		}
	}
	if c.Fetch.Audio.Codec == "" {
		errs = append(errs, errors.New("fetch.audio.codec is required"))
	}
	if c.Fetch.Audio.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("fetch.audio.max_size_mb must be positive, got %d", c.Fetch.Audio.MaxSizeMB))
	}
	if c.Fetch.Video.MergeFormat == "" {
		errs = append(errs, errors.New("fetch.video.merge_format is required"))
	}
	if c.Fetch.Video.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("fetch.video.max_size_mb must be positive, got %d", c.Fetch.Video.MaxSizeMB))
	}

	if c.Janitor.Enabled {
		if c.Janitor.Schedule == "" {
			errs = append(errs, errors.New("janitor.schedule is required when janitor.enabled is true"))
		}
		if c.Janitor.MaxFileAge != "" {
			if _, err := time.ParseDuration(c.Janitor.MaxFileAge); err != nil {
				errs = append(errs, fmt.Errorf("janitor.max_file_age: invalid duration format %q: %w", c.Janitor.MaxFileAge, err))
			}
		}
		// Otherwise the sweep can delete files a running fetch is still writing.
		if age, timeout := c.Janitor.GetMaxFileAge(), c.Fetch.GetTimeout(); age <= timeout {
			errs = append(errs, fmt.Errorf("janitor.max_file_age (%s) must exceed fetch.timeout (%s)", age, timeout))
		}
		if c.Janitor.JournalRetention != "" {
			if _, err := time.ParseDuration(c.Janitor.JournalRetention); err != nil {
				errs = append(errs, fmt.Errorf("janitor.journal_retention: invalid duration format %q: %w", c.Janitor.JournalRetention, err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
