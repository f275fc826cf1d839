package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/selfboot/mpdraft/internal/adapt"
	"github.com/selfboot/mpdraft/internal/config"
	"github.com/selfboot/mpdraft/internal/privacy"
	"github.com/selfboot/mpdraft/internal/publish"
	"github.com/selfboot/mpdraft/internal/rehost"
	"github.com/selfboot/mpdraft/internal/report"
	"github.com/selfboot/mpdraft/internal/site"
	"github.com/selfboot/mpdraft/internal/store"
	"github.com/selfboot/mpdraft/internal/wechat"
)

var (
	publishFromFeed      int
	publishSkipPublished bool
	publishDryRun        bool
	publishFormat        string
	noColor              bool
)

var publishCmd = &cobra.Command{
	Use:   "publish [identifier...]",
	Short: "Adapt articles and submit them as drafts",
	Long: `Publish each identifier (e.g. 2024-01-15-my-post, or 2024-01-15-my-post.en for the
English edition) as a draft. Without arguments the identifiers come from --from-feed,
then from the environment variable named by batch.identifiers_env.`,
	RunE: publishAction,
}

func init() {
	publishCmd.Flags().IntVar(&publishFromFeed, "from-feed", 0, "publish the N newest posts from the site feed")
	publishCmd.Flags().BoolVar(&publishSkipPublished, "skip-published", false, "skip identifiers with a recorded draft (needs storage)")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "locate and adapt only, no platform calls")
	publishCmd.Flags().StringVar(&publishFormat, "format", "terminal", "report format: terminal, json, markdown")
	publishCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(publishCmd)
}

func publishAction(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !publishDryRun {
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}
	}

	formatter, err := report.New(publishFormat, useColor())
	if err != nil {
		return err
	}

	redactor, err := privacy.NewRedactor(cfg.Privacy.Redact.Patterns)
	if err != nil {
		return fmt.Errorf("privacy: %w", err)
	}
	redactor.AddSecret(cfg.WeChat.AppSecret)

	// Machine-readable reports own stdout; progress goes to stderr.
	var progress io.Writer = os.Stdout
	if publishFormat != "terminal" && publishFormat != "" {
		progress = os.Stderr
	}
	progress = privacy.NewWriter(progress, redactor)

	locator, err := newLocator(cfg)
	if err != nil {
		return err
	}
	ids, err := resolveIdentifiers(cfg, locator, args)
	if err != nil {
		return err
	}

	deps := publish.Deps{
		Locator: locator,
		Adapter: adapt.New(cfg.Site.TitleSelector, cfg.Site.ContentSelector),
	}
	if !publishDryRun {
		if err := wirePlatform(cfg, &deps, progress); err != nil {
			return err
		}
	}

	ctx := cmd.Context()

	if cfg.Storage.Enabled {
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = db.Close() }()

		if n, err := db.PruneOld(ctx, cfg.Storage.RetainDays); err != nil {
			fmt.Fprintf(progress, "warning: prune history: %v\n", err)
		} else if n > 0 {
			fmt.Fprintf(progress, "Pruned %d runs older than %d days\n", n, cfg.Storage.RetainDays)
		}
		deps.History = db
	}

	pub, err := publish.New(deps, publish.Options{
		Author:             cfg.Draft.Author,
		AllowComments:      cfg.Draft.OpenComment,
		OnlyFansCanComment: cfg.Draft.FansOnlyComment,
		DryRun:             publishDryRun,
		SkipPublished:      publishSkipPublished,
		Out:                progress,
		Redactor:           redactor,
	})
	if err != nil {
		return err
	}

	rep, runErr := pub.Run(ctx, ids)
	if errors.Is(runErr, publish.ErrNoIdentifiers) {
		return fmt.Errorf("nothing to publish: pass identifiers, use --from-feed, or set $%s", cfg.Batch.IdentifiersEnv)
	}

	fmt.Fprintln(progress)
	if err := formatter.Format(privacy.NewWriter(os.Stdout, redactor), rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("batch aborted: %s", redactor.Redact(runErr.Error()))
	}
	if rep.HasFailures() {
		s := rep.Summary()
		return fmt.Errorf("%d of %d articles failed", s.Failed, s.Total)
	}
	return nil
}

// wirePlatform builds the platform client and the components that call it.
func wirePlatform(cfg *config.Config, deps *publish.Deps, progress io.Writer) error {
	client, err := newPlatformClient(cfg)
	if err != nil {
		return err
	}
	creds, err := wechat.NewCredentials(client, cfg.WeChat.AppID, cfg.WeChat.AppSecret)
	if err != nil {
		return err
	}
	rh, err := rehost.New(client, rehost.Options{
		Extensions: cfg.Images.Extensions,
		CDNSuffix:  cfg.Images.CDNSuffix,
		Timeout:    cfg.WeChat.Timeout.Duration,
		Logf: func(format string, args ...any) {
			fmt.Fprintf(progress, format, args...)
		},
	})
	if err != nil {
		return fmt.Errorf("rehost: %w", err)
	}

	deps.Credentials = creds
	deps.Rehoster = rh
	deps.Submitter = client
	return nil
}

func newPlatformClient(cfg *config.Config) (*wechat.Client, error) {
	client, err := wechat.NewClient(wechat.Options{
		BaseURL:             cfg.WeChat.APIBase,
		ProxyURL:            cfg.WeChat.ProxyURL,
		Timeout:             cfg.WeChat.Timeout.Duration,
		DefaultThumbMediaID: cfg.Draft.DefaultThumbMediaID,
	})
	if err != nil {
		return nil, fmt.Errorf("platform client: %w", err)
	}
	return client, nil
}

func newLocator(cfg *config.Config) (*site.Locator, error) {
	loc, err := site.NewLocator(cfg.Site.BaseURL, cfg.Site.PublicDir, cfg.Site.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("site: %w", err)
	}
	return loc, nil
}

// resolveIdentifiers picks the batch: explicit args, then the feed, then the env var.
func resolveIdentifiers(cfg *config.Config, loc *site.Locator, args []string) ([]string, error) {
	switch {
	case len(args) > 0:
		return args, nil
	case publishFromFeed > 0:
		ids, err := loc.Discover(cfg.Site.FeedPath(), publishFromFeed)
		if err != nil {
			return nil, fmt.Errorf("read feed: %w", err)
		}
		return ids, nil
	default:
		return cfg.Batch.Identifiers, nil
	}
}

func useColor() bool {
	return !noColor && isatty.IsTerminal(os.Stdout.Fd())
}
