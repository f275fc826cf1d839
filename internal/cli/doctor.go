package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/selfboot/mpdraft/internal/config"
	"github.com/selfboot/mpdraft/internal/privacy"
	"github.com/selfboot/mpdraft/internal/store"
	"github.com/selfboot/mpdraft/internal/wechat"
)

var doctorOnline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, site output and platform access",
	RunE:  doctorAction,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOnline, "online", false, "also request an access token from the platform")
	rootCmd.AddCommand(doctorCmd)
}

const (
	failureWindowDays = 30
	repeatedFailures  = 3
	feedScanLimit     = 1000
)

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (site %s)", cfg.Site.BaseURL)

	// Credentials
	credsOK := cfg.RequireCredentials() == nil
	if !credsOK {
		printCheck(false, "%v", cfg.RequireCredentials())
		ok = false
	} else {
		printCheck(true, "credentials from $%s and $%s", cfg.WeChat.AppIDEnv, cfg.WeChat.AppSecretEnv)
	}
	if cfg.WeChat.ProxyURL != "" {
		printInfo("platform calls go through the proxy from $%s", cfg.WeChat.ProxyURLEnv)
	}

	// Site output
	if info, err := os.Stat(cfg.Site.PublicDir); err != nil || !info.IsDir() {
		printCheck(false, "public dir %s not found (run the site generator first)", cfg.Site.PublicDir)
		ok = false
	} else {
		printCheck(true, "public dir %s", cfg.Site.PublicDir)
	}
	if cfg.Site.SourceDir != "" {
		if info, err := os.Stat(cfg.Site.SourceDir); err != nil || !info.IsDir() {
			printCheck(false, "source dir %s not found", cfg.Site.SourceDir)
			ok = false
		} else {
			printCheck(true, "source dir %s", cfg.Site.SourceDir)
		}
	}

	// Feed, only needed for --from-feed
	if locator, err := newLocator(cfg); err == nil {
		feedPath := cfg.Site.FeedPath()
		if _, statErr := os.Stat(feedPath); statErr != nil {
			printInfo("feed %s not found, publish --from-feed is unavailable", feedPath)
		} else if ids, err := locator.Discover(feedPath, feedScanLimit); err != nil {
			printCheck(false, "feed %s: %v", feedPath, err)
			ok = false
		} else {
			printCheck(true, "feed %s (%d posts)", feedPath, len(ids))
		}
	}

	// Database
	if cfg.Storage.Enabled {
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			printCheck(false, "database: %v", err)
			ok = false
		} else {
			defer func() { _ = db.Close() }()
			printCheck(true, "database %s", cfg.Storage.Path)
			checkPublishHealth(cmd.Context(), db)
		}
	}

	// Platform
	if doctorOnline && credsOK {
		if err := checkToken(cmd.Context(), cfg); err != nil {
			printCheck(false, "access token: %v", err)
			ok = false
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkToken(ctx context.Context, cfg *config.Config) error {
	client, err := newPlatformClient(cfg)
	if err != nil {
		return err
	}
	creds, err := wechat.NewCredentials(client, cfg.WeChat.AppID, cfg.WeChat.AppSecret)
	if err != nil {
		return err
	}
	tok, err := creds.Acquire(ctx)
	if err != nil {
		return err
	}
	printCheck(true, "access token %s (expires %s)", privacy.Mask(tok.Value), humanize.Time(tok.ExpiresAt))
	return nil
}

// checkPublishHealth reports identifiers that keep failing.
func checkPublishHealth(ctx context.Context, db *store.Store) {
	records, err := db.History(ctx, store.HistoryFilter{Status: store.StatusFailed, Limit: 200})
	if err != nil || len(records) == 0 {
		return
	}

	since := time.Now().AddDate(0, 0, -failureWindowDays)
	counts := make(map[string]int)
	var order []string
	last := make(map[string]store.DraftRecord)
	for _, rec := range records {
		if rec.RecordedAt.Before(since) {
			continue
		}
		if counts[rec.Identifier] == 0 {
			order = append(order, rec.Identifier)
			last[rec.Identifier] = rec
		}
		counts[rec.Identifier]++
	}

	for _, id := range order {
		if counts[id] < repeatedFailures {
			continue
		}
		rec := last[id]
		printInfo("repeated failures: %s failed %d times in %d days, last at %s %s",
			id, counts[id], failureWindowDays, rec.Stage, humanize.Time(rec.RecordedAt))
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
