package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestYAML(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test yaml: %v", err)
	}
	return path
}

// --- Load tests ---

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_APP_ID", "wx123")
	t.Setenv("TEST_APP_SECRET", "s3cret")
	t.Setenv("TEST_PROXY", "http://proxy.local:3128")
	t.Setenv("TEST_FILES", "2024-01-01-post-a.md\n 2024-01-02-post-b.md ")

	writeTestYAML(t, dir, DefaultConfigFile, `
wechat:
  api_base: https://api.example.com/
  app_id_env: TEST_APP_ID
  app_secret_env: TEST_APP_SECRET
  proxy_url_env: TEST_PROXY
  timeout: 10s
site:
  base_url: https://blog.example.com/
  public_dir: site/public
  source_dir: site/source/_posts
  feed: rss2.xml
  title_selector: h1.title
  content_selector: article
draft:
  author: Someone
  default_thumb_media_id: thumb-1
  open_comment: true
  fans_only_comment: true
images:
  extensions: [png, jpg]
  cdn_suffix: "/thumb"
batch:
  identifiers_env: TEST_FILES
storage:
  enabled: true
  path: custom.db
  retain_days: 60
privacy:
  redact:
    patterns:
      - "(?i)ticket=\\w+"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.WeChat.APIBase != "https://api.example.com" {
		t.Errorf("api_base = %q", cfg.WeChat.APIBase)
	}
	if cfg.WeChat.AppID != "wx123" || cfg.WeChat.AppSecret != "s3cret" {
		t.Errorf("credentials = %q/%q", cfg.WeChat.AppID, cfg.WeChat.AppSecret)
	}
	if cfg.WeChat.ProxyURL != "http://proxy.local:3128" {
		t.Errorf("proxy = %q", cfg.WeChat.ProxyURL)
	}
	if cfg.WeChat.Timeout.Duration != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.WeChat.Timeout.Duration)
	}

	if cfg.Site.BaseURL != "https://blog.example.com" {
		t.Errorf("base_url = %q", cfg.Site.BaseURL)
	}
	if got := cfg.Site.FeedPath(); got != filepath.Join("site/public", "rss2.xml") {
		t.Errorf("feed path = %q", got)
	}
	if cfg.Site.TitleSelector != "h1.title" || cfg.Site.ContentSelector != "article" {
		t.Errorf("selectors = %q/%q", cfg.Site.TitleSelector, cfg.Site.ContentSelector)
	}

	if cfg.Draft.Author != "Someone" || cfg.Draft.DefaultThumbMediaID != "thumb-1" {
		t.Errorf("draft = %+v", cfg.Draft)
	}
	if !cfg.Draft.OpenComment || !cfg.Draft.FansOnlyComment {
		t.Errorf("comment flags = %+v", cfg.Draft)
	}

	if len(cfg.Images.Extensions) != 2 || cfg.Images.CDNSuffix != "/thumb" {
		t.Errorf("images = %+v", cfg.Images)
	}

	want := []string{"2024-01-01-post-a.md", "2024-01-02-post-b.md"}
	if len(cfg.Batch.Identifiers) != len(want) {
		t.Fatalf("identifiers = %v, want %v", cfg.Batch.Identifiers, want)
	}
	for i := range want {
		if cfg.Batch.Identifiers[i] != want[i] {
			t.Errorf("identifier[%d] = %q, want %q", i, cfg.Batch.Identifiers[i], want[i])
		}
	}

	if !cfg.Storage.Enabled || cfg.Storage.Path != "custom.db" || cfg.Storage.RetainDays != 60 {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Privacy.Redact.Patterns) != 1 {
		t.Errorf("redact patterns = %v", cfg.Privacy.Redact.Patterns)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DefaultAppIDEnv, "")
	t.Setenv(DefaultIdentifiersEnv, "")
	writeTestYAML(t, dir, DefaultConfigFile, `
site:
  base_url: https://blog.example.com
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.WeChat.APIBase != DefaultAPIBase {
		t.Errorf("api_base = %q, want %q", cfg.WeChat.APIBase, DefaultAPIBase)
	}
	if cfg.WeChat.AppIDEnv != DefaultAppIDEnv || cfg.WeChat.AppSecretEnv != DefaultAppSecretEnv {
		t.Errorf("env names = %q/%q", cfg.WeChat.AppIDEnv, cfg.WeChat.AppSecretEnv)
	}
	if cfg.WeChat.Timeout.Duration != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.WeChat.Timeout.Duration, DefaultTimeout)
	}
	if cfg.Site.PublicDir != DefaultPublicDir {
		t.Errorf("public_dir = %q", cfg.Site.PublicDir)
	}
	if cfg.Site.TitleSelector != DefaultTitleSelector || cfg.Site.ContentSelector != DefaultContentSelector {
		t.Errorf("selectors = %q/%q", cfg.Site.TitleSelector, cfg.Site.ContentSelector)
	}
	if cfg.Draft.Author != DefaultAuthor {
		t.Errorf("author = %q", cfg.Draft.Author)
	}
	if cfg.Draft.DefaultThumbMediaID != DefaultThumbMediaID {
		t.Errorf("default thumb = %q", cfg.Draft.DefaultThumbMediaID)
	}
	if len(cfg.Images.Extensions) != len(DefaultImageExtensions) {
		t.Errorf("extensions = %v", cfg.Images.Extensions)
	}
	if cfg.Storage.Enabled {
		t.Error("storage.enabled = true, want false by default")
	}
	if cfg.Storage.Path != DefaultStoragePath {
		t.Errorf("storage.path = %q, want %q", cfg.Storage.Path, DefaultStoragePath)
	}
	if len(cfg.Batch.Identifiers) != 0 {
		t.Errorf("identifiers = %v, want none", cfg.Batch.Identifiers)
	}
}

func TestLoad_MissingBaseURL(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
draft:
  author: x
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for missing base_url")
	}
	if want := "site.base_url is required"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want containing %q", err, want)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "relative base url",
			yaml: "site:\n  base_url: blog.example.com\n",
			want: "site.base_url",
		},
		{
			name: "bad cdn suffix",
			yaml: "site:\n  base_url: https://b.example.com\nimages:\n  cdn_suffix: \"(\"\n",
			want: "images.cdn_suffix",
		},
		{
			name: "bad extension",
			yaml: "site:\n  base_url: https://b.example.com\nimages:\n  extensions: [\".png\"]\n",
			want: "images.extensions",
		},
		{
			name: "bad redact pattern",
			yaml: "site:\n  base_url: https://b.example.com\nprivacy:\n  redact:\n    patterns: [\"[x\"]\n",
			want: "privacy.redact.patterns",
		},
		{
			name: "bad duration",
			yaml: "site:\n  base_url: https://b.example.com\nwechat:\n  timeout: soon\n",
			want: "parse duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTestYAML(t, dir, DefaultConfigFile, tt.yaml)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing config.yaml")
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	_, err := Load("  ")
	if err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestRequireCredentials(t *testing.T) {
	cfg := &Config{WeChat: WeChatConfig{AppIDEnv: "A", AppSecretEnv: "B"}}
	err := cfg.RequireCredentials()
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "A, B") {
		t.Errorf("error = %q, want both env names", err)
	}

	cfg.WeChat.AppID = "id"
	cfg.WeChat.AppSecret = "secret"
	if err := cfg.RequireCredentials(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
