package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvCookiesFile        = "YT_COOKIES_FILE"
	EnvCookiesB64         = "YT_COOKIES_B64"
	EnvCookies            = "YT_COOKIES"
	EnvCookiesFromBrowser = "YT_COOKIES_FROM_BROWSER"

	defaultListen           = ":8080"
	defaultDumpFileName     = "counters.yml"
	defaultCacheDirName     = "lumy-cache"
	defaultProvisionTimeout = 5 * time.Minute
	defaultProbeTimeout     = 2 * time.Minute
	defaultDownloadTimeout  = 15 * time.Minute
	defaultMaxBodyBytes     = 1 << 20
)

var defaultExtractorArgs = []string{"--extractor-args", "youtube:player_client=android"}

// CredentialsConfig holds the environment sourced cookie channels.
type CredentialsConfig struct {
	CookiesFile        string `yaml:"-"`
	CookiesB64         string `yaml:"-"`
	Cookies            string `yaml:"-"`
	CookiesFromBrowser string `yaml:"-"`
}

type BinaryConfig struct {
	CacheDir       string `yaml:"cache_dir"`
	ExtractorURL   string `yaml:"extractor_url"` // Release download base, the asset name is appended
	TranscoderPath string `yaml:"transcoder_path"`
	// Deadline of one extractor download, a stalled run fails and the next
	// call starts over.
	ProvisionTimeout time.Duration `yaml:"provision_timeout"`
}

type DownloadConfig struct {
	TempDir         string        `yaml:"temp_dir"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	ExtractorArgs   []string      `yaml:"extractor_args"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type Config struct {
	Listen       string            `yaml:"listen"`
	LogLevel     string            `yaml:"log_level"`
	RedisURL     string            `yaml:"redis_url"`
	DumpFileName string            `yaml:"dump_filename"`
	PageFileName string            `yaml:"page_filename"` // Markdown usage page, the built in one when empty
	Binary       BinaryConfig      `yaml:"binary"`
	Download     DownloadConfig    `yaml:"download"`
	Credentials  CredentialsConfig `yaml:"-"`
}

func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}

	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}

	if c.DumpFileName == "" {
		c.DumpFileName = defaultDumpFileName
	}

	if c.Binary.CacheDir == "" {
		c.Binary.CacheDir = filepath.Join(os.TempDir(), defaultCacheDirName)
	}

	if c.Binary.ProvisionTimeout <= 0 {
		c.Binary.ProvisionTimeout = defaultProvisionTimeout
	}

	if c.Download.TempDir == "" {
		c.Download.TempDir = os.TempDir()
	}

	if c.Download.ProbeTimeout <= 0 {
		c.Download.ProbeTimeout = defaultProbeTimeout
	}

	if c.Download.DownloadTimeout <= 0 {
		c.Download.DownloadTimeout = defaultDownloadTimeout
	}

	if c.Download.ExtractorArgs == nil {
		c.Download.ExtractorArgs = append([]string(nil), defaultExtractorArgs...)
	}

	if c.Download.MaxBodyBytes <= 0 {
		c.Download.MaxBodyBytes = defaultMaxBodyBytes
	}
}

// LoadEnv fills the credential channels from the environment.
func (c *Config) LoadEnv() {
	c.Credentials = CredentialsConfig{
		CookiesFile:        os.Getenv(EnvCookiesFile),
		CookiesB64:         os.Getenv(EnvCookiesB64),
		Cookies:            os.Getenv(EnvCookies),
		CookiesFromBrowser: os.Getenv(EnvCookiesFromBrowser),
	}
}

func (c *Config) BinaryConfig() *BinaryConfig {
	return &c.Binary
}

func (c *Config) DownloadConfig() *DownloadConfig {
	return &c.Download
}

// Load reads the yaml file at path (a missing file means defaults), then .env
// and the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	cfg.SetDefaults()
	cfg.LoadEnv()

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
