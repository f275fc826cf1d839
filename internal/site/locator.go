// Package site maps post identifiers to the generated static-site artifacts
// and their public URLs.
package site

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	delimiter    = "-"
	artifactName = "index.html"
	langEnglish  = "en"
	langSuffix   = "." + langEnglish
)

// sourceExts are stripped from identifiers given as filenames.
var sourceExts = []string{".md", ".markdown", ".html"}

// ErrInvalidIdentifier is returned for identifiers that do not follow the
// YYYY-MM-DD-slug naming rule.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// NotFoundError means the generated artifact for an identifier is missing.
type NotFoundError struct {
	Identifier string
	Path       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("article %s not found: %s does not exist", e.Identifier, e.Path)
}

// ContentRef points at one generated article.
type ContentRef struct {
	Identifier   string // normalized stem, e.g. 2024-01-01-post-a or 2024-01-01-post-a.en
	ArtifactPath string
	CanonicalURL string
	Lang         string // "" for the default language, "en" for translations
}

// Locator resolves identifiers against a site output directory.
type Locator struct {
	baseURL   string
	publicDir string
	sourceDir string
}

// NewLocator creates a locator. sourceDir is optional and only used for front matter.
func NewLocator(baseURL, publicDir, sourceDir string) (*Locator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("locator: base url is required")
	}
	if strings.TrimSpace(publicDir) == "" {
		return nil, errors.New("locator: public dir is required")
	}
	return &Locator{baseURL: baseURL, publicDir: publicDir, sourceDir: sourceDir}, nil
}

// Normalize reduces a filename or path to its identifier stem.
func Normalize(identifier string) string {
	id := strings.TrimSpace(identifier)
	id = path.Base(filepath.ToSlash(id))
	for _, ext := range sourceExts {
		if strings.HasSuffix(strings.ToLower(id), ext) {
			return id[:len(id)-len(ext)]
		}
	}
	return id
}

// Derive applies the path rule without touching the filesystem: the first three
// dash-separated parts are the date path, the rest is the slug.
func (l *Locator) Derive(identifier string) (ContentRef, error) {
	id := Normalize(identifier)

	stem, lang := id, ""
	if strings.HasSuffix(stem, langSuffix) {
		stem, lang = strings.TrimSuffix(stem, langSuffix), langEnglish
	}

	parts := strings.Split(stem, delimiter)
	if len(parts) < 4 {
		return ContentRef{}, fmt.Errorf("%w %q: want YYYY-MM-DD-slug", ErrInvalidIdentifier, identifier)
	}
	if _, err := time.Parse("2006-01-02", strings.Join(parts[:3], delimiter)); err != nil {
		return ContentRef{}, fmt.Errorf("%w %q: bad date: %v", ErrInvalidIdentifier, identifier, err)
	}
	slug := strings.Join(parts[3:], delimiter)
	if slug == "" {
		return ContentRef{}, fmt.Errorf("%w %q: empty slug", ErrInvalidIdentifier, identifier)
	}

	segments := append([]string{}, parts[:3]...)
	segments = append(segments, slug)
	if lang != "" {
		segments = append([]string{lang}, segments...)
	}

	elems := make([]string, 0, len(segments)+2)
	elems = append(elems, l.publicDir)
	elems = append(elems, segments...)
	elems = append(elems, artifactName)

	return ContentRef{
		Identifier:   id,
		ArtifactPath: filepath.Join(elems...),
		CanonicalURL: l.baseURL + "/" + strings.Join(segments, "/") + "/",
		Lang:         lang,
	}, nil
}

// Locate derives the ContentRef and checks the artifact exists.
func (l *Locator) Locate(identifier string) (ContentRef, error) {
	ref, err := l.Derive(identifier)
	if err != nil {
		return ContentRef{}, err
	}
	info, err := os.Stat(ref.ArtifactPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ContentRef{}, &NotFoundError{Identifier: ref.Identifier, Path: ref.ArtifactPath}
	case err != nil:
		return ContentRef{}, fmt.Errorf("stat artifact: %w", err)
	case info.IsDir():
		return ContentRef{}, &NotFoundError{Identifier: ref.Identifier, Path: ref.ArtifactPath}
	}
	return ref, nil
}

// Identify is the inverse of Derive for canonical URLs. It reports false for
// links outside the site or not shaped like a post permalink.
func (l *Locator) Identify(link string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", false
	}
	base, err := url.Parse(l.baseURL)
	if err != nil || !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}

	rest := strings.TrimPrefix(u.Path, strings.TrimRight(base.Path, "/"))
	segments := strings.Split(strings.Trim(rest, "/"), "/")

	lang := ""
	if len(segments) == 5 && segments[0] == langEnglish {
		lang, segments = langEnglish, segments[1:]
	}
	if len(segments) != 4 {
		return "", false
	}

	id := strings.Join(segments, delimiter)
	if lang != "" {
		id += langSuffix
	}
	if _, err := l.Derive(id); err != nil {
		return "", false
	}
	return id, true
}

// ReadArtifact returns the generated HTML for ref.
func ReadArtifact(ref ContentRef) (string, error) {
	data, err := os.ReadFile(ref.ArtifactPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &NotFoundError{Identifier: ref.Identifier, Path: ref.ArtifactPath}
		}
		return "", fmt.Errorf("read artifact: %w", err)
	}
	return string(data), nil
}
