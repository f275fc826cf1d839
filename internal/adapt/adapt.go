// Package adapt rewrites a generated article page into the HTML subset the
// platform's draft editor renders.
package adapt

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTitleSelector   = "h1.post-title"
	DefaultContentSelector = ".post-content"

	// Untitled is used when the page has no title heading.
	Untitled = "Untitled"
)

// headingSizes maps heading tags to their inline font size.
var headingSizes = []struct {
	tag  string
	size string
}{
	{"h1", "2.0em"},
	{"h2", "1.8em"},
	{"h3", "1.6em"},
	{"h4", "1.4em"},
	{"h5", "1.2em"},
	{"h6", "1.0em"},
}

const headings = "h1, h2, h3, h4, h5, h6"

// AdaptError means the page has no content container to extract.
type AdaptError struct {
	Selector string
}

func (e *AdaptError) Error() string {
	return fmt.Sprintf("adapt: content container %q not found", e.Selector)
}

// Adapter extracts title and body from an article page.
type Adapter struct {
	titleSelector   string
	contentSelector string
}

// New creates an adapter. Empty selectors fall back to the defaults.
func New(titleSelector, contentSelector string) *Adapter {
	if strings.TrimSpace(titleSelector) == "" {
		titleSelector = DefaultTitleSelector
	}
	if strings.TrimSpace(contentSelector) == "" {
		contentSelector = DefaultContentSelector
	}
	return &Adapter{titleSelector: titleSelector, contentSelector: contentSelector}
}

// Adapt returns the article title and the adapted content fragment.
func (a *Adapter) Adapt(raw string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("adapt: parse html: %w", err)
	}

	title := strings.Join(strings.Fields(doc.Find(a.titleSelector).First().Text()), " ")
	if title == "" {
		title = Untitled
	}

	container := doc.Find(a.contentSelector).First()
	if container.Length() == 0 {
		return "", "", &AdaptError{Selector: a.contentSelector}
	}

	transform(container)

	body, err := container.Html()
	if err != nil {
		return "", "", fmt.Errorf("adapt: render html: %w", err)
	}
	return title, strings.TrimSpace(body), nil
}

// Normalize applies the content transforms to an already extracted fragment.
// Adapted output is a fixed point: Normalize(html) == html.
func Normalize(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body>" + fragment + "</body></html>"))
	if err != nil {
		return "", fmt.Errorf("adapt: parse fragment: %w", err)
	}
	body := doc.Find("body")
	transform(body)

	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("adapt: render html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func transform(root *goquery.Selection) {
	stripHeadingAnchors(root)
	root.Find("a[href]").RemoveAttr("href")
	sizeHeadings(root)
	flattenLists(root)
	root.Find("table").Each(func(_ int, t *goquery.Selection) {
		setStyle(t, "display", "block")
		setStyle(t, "overflow-x", "scroll")
	})
	root.Find("img").RemoveAttr("srcset").RemoveAttr("sizes")
}

// stripHeadingAnchors drops permalink anchors and ids from headings. Other
// in-page links inside a heading are unwrapped so their text stays.
func stripHeadingAnchors(root *goquery.Selection) {
	h := root.Find(headings)
	h.Find(`a.headerlink, a[href^="#"]`).Each(func(_ int, a *goquery.Selection) {
		if a.HasClass("headerlink") || isPermalinkText(a.Text()) {
			a.Remove()
			return
		}
		a.ReplaceWithSelection(a.Contents())
	})
	h.RemoveAttr("id")
}

func isPermalinkText(text string) bool {
	switch strings.TrimSpace(text) {
	case "", "#", "¶", "§":
		return true
	}
	return false
}

func sizeHeadings(root *goquery.Selection) {
	for _, hs := range headingSizes {
		root.Find(hs.tag).Each(func(_ int, s *goquery.Selection) {
			setStyle(s, "font-size", hs.size)
		})
	}
}

// flattenLists makes each list's own items its only children. Items of nested
// lists stay with their list; a nested list stranded in wrapper markup moves
// into the item before it.
func flattenLists(root *goquery.Selection) {
	root.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		nodes := list.Find("li, ul, ol").FilterFunction(func(_ int, s *goquery.Selection) bool {
			between := s.ParentsUntilSelection(list)
			if goquery.NodeName(s) == "li" {
				return between.Filter("ul, ol").Length() == 0
			}
			return between.Filter("li, ul, ol").Length() == 0
		})
		items := nodes.Filter("li")
		if nodes.Length() == items.Length() && directItemsOnly(list, items) {
			return
		}

		nodes.Remove()
		list.Empty()
		var last *goquery.Selection
		nodes.Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "li" {
				list.AppendSelection(s)
				last = s
				return
			}
			if last == nil {
				list.AppendHtml("<li></li>")
				last = list.Children().Last()
			}
			last.AppendSelection(s)
		})
	})
}

func directItemsOnly(list, items *goquery.Selection) bool {
	return list.Contents().Length() == items.Length() && list.Children().Filter("li").Length() == items.Length()
}
