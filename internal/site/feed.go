package site

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"
)

// Discover reads the generated Atom/RSS feed at feedPath and returns the
// identifiers of the n most recent posts, newest first. Entries whose link is
// not a post permalink under the site base URL are skipped.
func (l *Locator) Discover(feedPath string, n int) ([]string, error) {
	if n <= 0 {
		return nil, errors.New("discover: count must be at least 1")
	}

	f, err := os.Open(feedPath)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer func() { _ = f.Close() }()

	feed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedPath, err)
	}

	return l.identifiersFromFeed(feed, n), nil
}

func (l *Locator) identifiersFromFeed(feed *gofeed.Feed, n int) []string {
	items := make([]*gofeed.Item, len(feed.Items))
	copy(items, feed.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return itemPublishedTime(items[i]).After(itemPublishedTime(items[j]))
	})

	var ids []string
	seen := make(map[string]bool)
	for _, item := range items {
		if len(ids) == n {
			break
		}
		id, ok := l.Identify(item.Link)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
