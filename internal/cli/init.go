package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/selfboot/mpdraft/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

const envExampleFile = ".env.example"

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	envPath := filepath.Join(configDir, envExampleFile)
	wrote, err = writeIfNotExists(envPath, []byte(exampleEnv))
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# mpdraft configuration

wechat:
  api_base: https://api.weixin.qq.com
  app_id_env: APP_ID
  app_secret_env: APP_SECRET
  proxy_url_env: PROXY_URL
  timeout: 30s

site:
  base_url: https://selfboot.cn
  public_dir: public
  source_dir: source/_posts
  feed: atom.xml
  title_selector: h1.post-title
  content_selector: .post-content

draft:
  author: SelfBoot
  # default_thumb_media_id: ""
  open_comment: false
  fans_only_comment: false

images:
  extensions: [png, jpg, jpeg, gif, webp]
  cdn_suffix: '/webp\d*'

batch:
  identifiers_env: MD_FILES

storage:
  enabled: true
  path: .mpdraft/mpdraft.db
  retain_days: 180

privacy:
  redact:
    patterns: []
    # - "access_token=[A-Za-z0-9_-]+"
`

const exampleEnv = `# Copy to .env in the working directory and fill in.
APP_ID=
APP_SECRET=
# PROXY_URL=http://127.0.0.1:8080
# MD_FILES="2024-01-15-my-post 2024-01-15-my-post.en"
`
