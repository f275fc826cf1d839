package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir       = ".mpdraft"
	DefaultConfigFile      = "config.yaml"
	DefaultEnvFile         = ".env"
	DefaultAPIBase         = "https://api.weixin.qq.com"
	DefaultTimeout         = 30 * time.Second
	DefaultPublicDir       = "public"
	DefaultFeed            = "atom.xml"
	DefaultTitleSelector   = "h1.post-title"
	DefaultContentSelector = ".post-content"
	DefaultAuthor          = "SelfBoot"
	DefaultThumbMediaID    = "9p-m_bFNKi9cDOyUgfbEnqvyl3Rox79zs1DvpLad1ZBQ4q59A5AKCjqiKgk3nyWb"
	DefaultCDNSuffix       = `/webp\d*`
	DefaultStoragePath     = ".mpdraft/mpdraft.db"
	DefaultRetainDays      = 180
	DefaultAppIDEnv        = "APP_ID"
	DefaultAppSecretEnv    = "APP_SECRET"
	DefaultProxyURLEnv     = "PROXY_URL"
	DefaultIdentifiersEnv  = "MD_FILES"
)

// DefaultImageExtensions are the raster formats picked up by the rehoster.
var DefaultImageExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

// Duration wraps time.Duration for YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	WeChat  WeChatConfig  `yaml:"wechat"`
	Site    SiteConfig    `yaml:"site"`
	Draft   DraftConfig   `yaml:"draft"`
	Images  ImagesConfig  `yaml:"images"`
	Batch   BatchConfig   `yaml:"batch"`
	Storage StorageConfig `yaml:"storage"`
	Privacy PrivacyConfig `yaml:"privacy"`
}

type WeChatConfig struct {
	APIBase      string   `yaml:"api_base"`
	AppIDEnv     string   `yaml:"app_id_env"`
	AppSecretEnv string   `yaml:"app_secret_env"`
	ProxyURLEnv  string   `yaml:"proxy_url_env"`
	Timeout      Duration `yaml:"timeout"`

	// Resolved from env vars at load time.
	AppID     string `yaml:"-"`
	AppSecret string `yaml:"-"`
	ProxyURL  string `yaml:"-"`
}

type SiteConfig struct {
	BaseURL         string `yaml:"base_url"`
	PublicDir       string `yaml:"public_dir"`
	SourceDir       string `yaml:"source_dir"`
	Feed            string `yaml:"feed"`
	TitleSelector   string `yaml:"title_selector"`
	ContentSelector string `yaml:"content_selector"`
}

type DraftConfig struct {
	Author              string `yaml:"author"`
	DefaultThumbMediaID string `yaml:"default_thumb_media_id"`
	OpenComment         bool   `yaml:"open_comment"`
	FansOnlyComment     bool   `yaml:"fans_only_comment"`
}

type ImagesConfig struct {
	Extensions []string `yaml:"extensions"`
	CDNSuffix  string   `yaml:"cdn_suffix"`
}

type BatchConfig struct {
	IdentifiersEnv string `yaml:"identifiers_env"`

	// Resolved from env var at load time (whitespace separated).
	Identifiers []string `yaml:"-"`
}

type StorageConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Patterns []string `yaml:"patterns"`
}

// FeedPath returns the location of the generated feed.
func (s SiteConfig) FeedPath() string {
	if filepath.IsAbs(s.Feed) {
		return s.Feed
	}
	return filepath.Join(s.PublicDir, s.Feed)
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
// A .env file next to the working directory is loaded first when present.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Existing environment variables win over .env entries.
	_ = godotenv.Load(DefaultEnvFile)

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.WeChat.APIBase == "" {
		cfg.WeChat.APIBase = DefaultAPIBase
	}
	cfg.WeChat.APIBase = strings.TrimRight(cfg.WeChat.APIBase, "/")
	if cfg.WeChat.AppIDEnv == "" {
		cfg.WeChat.AppIDEnv = DefaultAppIDEnv
	}
	if cfg.WeChat.AppSecretEnv == "" {
		cfg.WeChat.AppSecretEnv = DefaultAppSecretEnv
	}
	if cfg.WeChat.ProxyURLEnv == "" {
		cfg.WeChat.ProxyURLEnv = DefaultProxyURLEnv
	}
	if cfg.WeChat.Timeout.Duration == 0 {
		cfg.WeChat.Timeout.Duration = DefaultTimeout
	}
	cfg.Site.BaseURL = strings.TrimRight(cfg.Site.BaseURL, "/")
	if cfg.Site.PublicDir == "" {
		cfg.Site.PublicDir = DefaultPublicDir
	}
	if cfg.Site.Feed == "" {
		cfg.Site.Feed = DefaultFeed
	}
	if cfg.Site.TitleSelector == "" {
		cfg.Site.TitleSelector = DefaultTitleSelector
	}
	if cfg.Site.ContentSelector == "" {
		cfg.Site.ContentSelector = DefaultContentSelector
	}
	if cfg.Draft.Author == "" {
		cfg.Draft.Author = DefaultAuthor
	}
	if cfg.Draft.DefaultThumbMediaID == "" {
		cfg.Draft.DefaultThumbMediaID = DefaultThumbMediaID
	}
	if len(cfg.Images.Extensions) == 0 {
		cfg.Images.Extensions = append([]string(nil), DefaultImageExtensions...)
	}
	if cfg.Images.CDNSuffix == "" {
		cfg.Images.CDNSuffix = DefaultCDNSuffix
	}
	if cfg.Batch.IdentifiersEnv == "" {
		cfg.Batch.IdentifiersEnv = DefaultIdentifiersEnv
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
}

func resolveEnv(cfg *Config) {
	cfg.WeChat.AppID = strings.TrimSpace(os.Getenv(cfg.WeChat.AppIDEnv))
	cfg.WeChat.AppSecret = strings.TrimSpace(os.Getenv(cfg.WeChat.AppSecretEnv))
	cfg.WeChat.ProxyURL = strings.TrimSpace(os.Getenv(cfg.WeChat.ProxyURLEnv))
	cfg.Batch.Identifiers = strings.Fields(os.Getenv(cfg.Batch.IdentifiersEnv))
}

func validate(cfg *Config) error {
	if cfg.Site.BaseURL == "" {
		return errors.New("site.base_url is required")
	}
	u, err := url.Parse(cfg.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url: invalid URL %q", cfg.Site.BaseURL)
	}

	if cfg.WeChat.ProxyURL != "" {
		if _, err := url.Parse(cfg.WeChat.ProxyURL); err != nil {
			return fmt.Errorf("wechat.proxy_url: %w", err)
		}
	}

	if cfg.WeChat.Timeout.Duration < 0 {
		return fmt.Errorf("wechat.timeout: must be positive, got %s", cfg.WeChat.Timeout.Duration)
	}

	if _, err := regexp.Compile(cfg.Images.CDNSuffix); err != nil {
		return fmt.Errorf("images.cdn_suffix: %w", err)
	}
	for _, ext := range cfg.Images.Extensions {
		if strings.TrimSpace(ext) == "" || strings.ContainsAny(ext, "./ ") {
			return fmt.Errorf("images.extensions: invalid extension %q", ext)
		}
	}

	for _, p := range cfg.Privacy.Redact.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("privacy.redact.patterns: %w", err)
		}
	}

	return nil
}

// RequireCredentials reports whether the platform credentials were resolved.
// Offline commands (preview, history) do not need them.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.WeChat.AppID == "" {
		missing = append(missing, c.WeChat.AppIDEnv)
	}
	if c.WeChat.AppSecret == "" {
		missing = append(missing, c.WeChat.AppSecretEnv)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: set %s", strings.Join(missing, ", "))
	}
	return nil
}
