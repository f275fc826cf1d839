// Package rehost moves externally hosted article images into the platform's
// media store and rewrites their references.
package rehost

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/selfboot/mpdraft/internal/wechat"
)

const (
	defaultTimeout  = 30 * time.Second
	maxImageBytes   = 20 << 20
	fetchUserAgent  = "Mozilla/5.0 (compatible; mpdraft/1.0)"
	imageFilePrefix = "image"
)

// DefaultExtensions are the image suffixes recognised in src attributes.
var DefaultExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

// DefaultCDNSuffix matches the format variants the site's image CDN appends.
const DefaultCDNSuffix = `/webp\d*`

// Status of one rehosted image.
type Status string

const (
	StatusRehosted Status = "rehosted"
	StatusSkipped  Status = "skipped"
)

// Uploader is the subset of the platform client the rehoster needs.
type Uploader interface {
	UploadMaterial(ctx context.Context, token, filename string, data []byte) (wechat.Material, error)
	UploadImage(ctx context.Context, token, filename string, data []byte) (string, error)
}

// ThumbnailState tracks the cover image of one article. It is set at most once.
type ThumbnailState struct {
	MediaID   string
	Attempted bool
}

// ImageRef describes one distinct image reference in an article.
type ImageRef struct {
	OriginalURL       string `json:"original_url"`
	ResolvedExtension string `json:"extension,omitempty"`
	PlatformURL       string `json:"platform_url,omitempty"`
}

// ImageResult is the outcome for one distinct image.
type ImageResult struct {
	ImageRef
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Size   int    `json:"size,omitempty"`
}

// Options configures a Rehoster.
type Options struct {
	Extensions []string
	CDNSuffix  string // regexp; empty disables suffix stripping
	Timeout    time.Duration
	HTTPClient *http.Client // image fetches; defaults to a direct client without proxy
	Logf       func(format string, args ...any)
}

// Rehoster fetches images and re-uploads them to the platform.
type Rehoster struct {
	up      Uploader
	pattern *regexp.Regexp
	timeout time.Duration
	http    *http.Client
	logf    func(format string, args ...any)
}

// New creates a rehoster.
func New(up Uploader, opts Options) (*Rehoster, error) {
	if up == nil {
		return nil, errors.New("rehost: uploader is required")
	}
	pattern, err := compilePattern(opts.Extensions, opts.CDNSuffix)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		client = &http.Client{Timeout: timeout, Transport: transport}
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Rehoster{up: up, pattern: pattern, timeout: timeout, http: client, logf: logf}, nil
}

func compilePattern(exts []string, suffix string) (*regexp.Regexp, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	quoted := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimPrefix(strings.TrimSpace(e), ".")
		if e != "" {
			quoted = append(quoted, regexp.QuoteMeta(e))
		}
	}
	if len(quoted) == 0 {
		return nil, errors.New("rehost: no image extensions")
	}

	expr := `(?i)\ssrc="(https?://[^"\s]+?\.(?:` + strings.Join(quoted, "|") + `))`
	if suffix != "" {
		if _, err := regexp.Compile(suffix); err != nil {
			return nil, fmt.Errorf("rehost: invalid cdn suffix: %w", err)
		}
		expr += `(?:` + suffix + `)?`
	}
	expr += `"`

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("rehost: compile pattern: %w", err)
	}
	return re, nil
}

// Rehost replaces every matched image src in content with its platform URL and
// returns one result per distinct image. It never fails: an image that cannot
// be fetched, recognised or uploaded keeps its original URL. The first image
// that is successfully fetched is also offered as the article thumbnail.
func (r *Rehoster) Rehost(ctx context.Context, content, token string, thumb *ThumbnailState) (string, []ImageResult) {
	if thumb == nil {
		thumb = &ThumbnailState{}
	}
	matches := r.pattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	var (
		out     strings.Builder
		results []ImageResult
		seen    = make(map[string]int)
		last    int
	)
	for _, m := range matches {
		// m[2]:m[3] is the fetchable URL; the value runs to the closing quote.
		valueStart, valueEnd := m[2], m[1]-1
		original := content[valueStart:valueEnd]
		fetchURL := html.UnescapeString(content[m[2]:m[3]])

		idx, ok := seen[fetchURL]
		if !ok {
			res := r.rehostOne(ctx, fetchURL, html.UnescapeString(original), token, thumb)
			results = append(results, res)
			idx = len(results) - 1
			seen[fetchURL] = idx
		}

		out.WriteString(content[last:valueStart])
		if res := results[idx]; res.Status == StatusRehosted {
			out.WriteString(html.EscapeString(res.PlatformURL))
		} else {
			out.WriteString(original)
		}
		last = valueEnd
	}
	out.WriteString(content[last:])
	return out.String(), results
}

func (r *Rehoster) rehostOne(ctx context.Context, fetchURL, original, token string, thumb *ThumbnailState) ImageResult {
	res := ImageResult{ImageRef: ImageRef{OriginalURL: original}, Status: StatusSkipped}

	if err := ctx.Err(); err != nil {
		res.Reason = err.Error()
		return res
	}

	data, err := r.fetch(ctx, fetchURL)
	if err != nil {
		res.Reason = "fetch: " + err.Error()
		r.logf("  image %s: %v\n", original, err)
		return res
	}
	res.Size = len(data)

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		res.Reason = "not an image: " + mt.String()
		r.logf("  image %s: skipped, detected %s\n", original, mt.String())
		return res
	}
	res.ResolvedExtension = strings.TrimPrefix(mt.Extension(), ".")
	filename := imageFilePrefix + mt.Extension()

	if !thumb.Attempted {
		thumb.Attempted = true
		m, err := r.up.UploadMaterial(ctx, token, filename, data)
		if err != nil {
			r.logf("  thumbnail %s: %v\n", original, err)
		} else {
			thumb.MediaID = m.MediaID
			r.logf("  thumbnail %s (%s)\n", original, humanize.Bytes(uint64(len(data))))
		}
	}

	platformURL, err := r.up.UploadImage(ctx, token, filename, data)
	if err != nil {
		res.Reason = "upload: " + err.Error()
		r.logf("  image %s: %v\n", original, err)
		return res
	}

	res.PlatformURL = platformURL
	res.Status = StatusRehosted
	r.logf("  image %s → %s (%s, %s)\n", original, platformURL, res.ResolvedExtension, humanize.Bytes(uint64(len(data))))
	return res
}

func (r *Rehoster) fetch(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %s", humanize.Bytes(maxImageBytes))
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	return data, nil
}
