package cli

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/spf13/cobra"

	"github.com/selfboot/mpdraft/internal/adapt"
	"github.com/selfboot/mpdraft/internal/config"
	"github.com/selfboot/mpdraft/internal/site"
)

var previewMarkdown bool

var previewCmd = &cobra.Command{
	Use:   "preview <identifier>",
	Short: "Show the adapted article without contacting the platform",
	Args:  cobra.ExactArgs(1),
	RunE:  previewAction,
}

func init() {
	previewCmd.Flags().BoolVar(&previewMarkdown, "markdown", false, "render the adapted content as Markdown")
	rootCmd.AddCommand(previewCmd)
}

func previewAction(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	locator, err := newLocator(cfg)
	if err != nil {
		return err
	}

	ref, err := locator.Locate(args[0])
	if err != nil {
		return err
	}
	raw, err := site.ReadArtifact(ref)
	if err != nil {
		return err
	}
	title, content, err := adapt.New(cfg.Site.TitleSelector, cfg.Site.ContentSelector).Adapt(raw)
	if err != nil {
		return err
	}
	fm, err := locator.SourceFrontMatter(ref)
	if err != nil {
		fmt.Printf("warning: front matter: %v\n", err)
	} else if fm.Title != "" {
		title = fm.Title
	}

	if !previewMarkdown {
		fmt.Printf("<!-- %s -->\n<!-- %s -->\n%s\n", title, ref.CanonicalURL, content)
		return nil
	}

	converter := md.NewConverter("", true, nil)
	text, err := converter.ConvertString(content)
	if err != nil {
		return fmt.Errorf("convert to markdown: %w", err)
	}
	fmt.Printf("# %s\n\n%s\n\n", title, text)
	if len(fm.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(fm.Tags, ", "))
	}
	fmt.Printf("Source: %s\n", ref.CanonicalURL)
	return nil
}
