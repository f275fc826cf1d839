// Package publish runs a batch of articles through locate, adapt, rehost and
// submit, one identifier at a time.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/selfboot/mpdraft/internal/adapt"
	"github.com/selfboot/mpdraft/internal/privacy"
	"github.com/selfboot/mpdraft/internal/rehost"
	"github.com/selfboot/mpdraft/internal/site"
	"github.com/selfboot/mpdraft/internal/store"
	"github.com/selfboot/mpdraft/internal/wechat"
)

// ErrNoIdentifiers is returned when a batch has nothing to publish.
var ErrNoIdentifiers = errors.New("no identifiers to publish")

// TokenSource hands out access tokens.
type TokenSource interface {
	Acquire(ctx context.Context) (wechat.AccessToken, error)
	Token(ctx context.Context) (wechat.AccessToken, error)
}

// Rehoster relocates article images.
type Rehoster interface {
	Rehost(ctx context.Context, content, token string, thumb *rehost.ThumbnailState) (string, []rehost.ImageResult)
}

// Submitter creates drafts.
type Submitter interface {
	AddDraft(ctx context.Context, token string, a wechat.Article) (string, error)
}

// History records outcomes. *store.Store implements it.
type History interface {
	BeginRun(ctx context.Context, id string, startedAt time.Time) error
	FinishRun(ctx context.Context, id string, finishedAt time.Time) error
	RecordDraft(ctx context.Context, in store.DraftInput) (store.DraftRecord, error)
	LastPublished(ctx context.Context, identifier string) (store.DraftRecord, bool, error)
}

// Deps are the pipeline components. History is optional.
type Deps struct {
	Locator     *site.Locator
	Adapter     *adapt.Adapter
	Credentials TokenSource
	Rehoster    Rehoster
	Submitter   Submitter
	History     History
}

// Options holds per-batch settings.
type Options struct {
	Author             string
	AllowComments      bool
	OnlyFansCanComment bool
	DryRun             bool // locate and adapt only
	SkipPublished      bool // needs History

	Out      io.Writer
	Redactor *privacy.Redactor
}

// Publisher is the batch orchestrator.
type Publisher struct {
	deps Deps
	opts Options
	out  io.Writer

	now      func() time.Time
	newRunID func() string

	lastToken string
}

// New validates deps and creates a publisher.
func New(deps Deps, opts Options) (*Publisher, error) {
	if deps.Locator == nil || deps.Adapter == nil {
		return nil, errors.New("publish: locator and adapter are required")
	}
	if !opts.DryRun && (deps.Credentials == nil || deps.Rehoster == nil || deps.Submitter == nil) {
		return nil, errors.New("publish: credentials, rehoster and submitter are required")
	}
	if opts.SkipPublished && deps.History == nil {
		return nil, errors.New("publish: skip published needs storage enabled")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Publisher{
		deps:     deps,
		opts:     opts,
		out:      privacy.NewWriter(out, opts.Redactor),
		now:      time.Now,
		newRunID: uuid.NewString,
	}, nil
}

func (p *Publisher) logf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Run publishes identifiers in order and returns one result per distinct
// identifier. Only a failure to obtain an access token aborts the batch; it is
// returned alongside the partial report.
func (p *Publisher) Run(ctx context.Context, identifiers []string) (Report, error) {
	ids := dedupe(identifiers)
	report := Report{RunID: p.newRunID(), StartedAt: p.now(), DryRun: p.opts.DryRun}
	if len(ids) == 0 {
		return report, ErrNoIdentifiers
	}

	p.logf("Publishing %d article(s), run %s\n", len(ids), report.RunID)

	if !p.opts.DryRun {
		tok, err := p.deps.Credentials.Acquire(ctx)
		if err != nil {
			p.logf("error: %v\n", err)
			return report, err
		}
		p.trackToken(tok)
		p.logf("access token %s, expires %s\n", privacy.Mask(tok.Value), tok.ExpiresAt.Format(time.RFC3339))
	}

	recording := p.deps.History != nil && !p.opts.DryRun
	bg := context.WithoutCancel(ctx)
	if recording {
		if err := p.deps.History.BeginRun(bg, report.RunID, report.StartedAt); err != nil {
			p.logf("warning: history: %v\n", err)
			recording = false
		}
	}

	var abortErr error
	for i, id := range ids {
		var res ItemResult
		switch {
		case abortErr != nil:
			res = failed(id, StageAuth, abortErr)
		case ctx.Err() != nil:
			res = failed(id, StageCancel, ctx.Err())
		default:
			p.logf("[%d/%d] %s\n", i+1, len(ids), id)
			res = p.publishOne(ctx, id)
			var authErr *wechat.AuthError
			if res.Stage == StageAuth && errors.As(res.Err, &authErr) {
				abortErr = res.Err
			}
		}
		p.logResult(res)
		report.Items = append(report.Items, res)

		if recording {
			p.record(bg, report.RunID, res)
		}
	}

	report.Duration = p.now().Sub(report.StartedAt)
	if recording {
		if err := p.deps.History.FinishRun(bg, report.RunID, report.StartedAt.Add(report.Duration)); err != nil {
			p.logf("warning: history: %v\n", err)
		}
	}
	if abortErr != nil {
		return report, abortErr
	}
	return report, nil
}

func (p *Publisher) publishOne(ctx context.Context, id string) ItemResult {
	start := p.now()
	res := p.process(ctx, id)
	res.Duration = p.now().Sub(start)
	return res
}

func (p *Publisher) process(ctx context.Context, id string) ItemResult {
	ref, err := p.deps.Locator.Locate(id)
	if err != nil {
		return failed(id, StageLocate, err)
	}
	res := ItemResult{Identifier: ref.Identifier, SourceURL: ref.CanonicalURL}

	raw, err := site.ReadArtifact(ref)
	if err != nil {
		return withFailure(res, StageLocate, err)
	}
	title, content, err := p.deps.Adapter.Adapt(raw)
	if err != nil {
		return withFailure(res, StageAdapt, err)
	}
	fm, err := p.deps.Locator.SourceFrontMatter(ref)
	if err != nil {
		p.logf("  warning: front matter: %v\n", err)
	} else if fm.Title != "" {
		title = fm.Title
	}
	res.Title = title
	res.Content = content

	if p.opts.SkipPublished {
		prev, ok, err := p.deps.History.LastPublished(ctx, ref.Identifier)
		if err != nil {
			p.logf("  warning: history lookup: %v\n", err)
		} else if ok {
			res.Status = StatusSkipped
			res.Reason = fmt.Sprintf("already published as %s on %s", prev.MediaID, prev.RecordedAt.Format("2006-01-02"))
			if prev.ContentHash != "" && prev.ContentHash != store.ContentHash(content) {
				res.Reason += ", content changed since"
			}
			return res
		}
	}

	if p.opts.DryRun {
		res.Status = StatusSkipped
		res.Reason = fmt.Sprintf("dry run, %d bytes adapted", len(content))
		return res
	}

	tok, err := p.deps.Credentials.Token(ctx)
	if err != nil {
		return withFailure(res, StageAuth, err)
	}
	p.trackToken(tok)

	thumb := &rehost.ThumbnailState{}
	content, res.Images = p.deps.Rehoster.Rehost(ctx, content, tok.Value, thumb)
	res.ThumbMediaID = thumb.MediaID
	if err := ctx.Err(); err != nil {
		return withFailure(res, StageRehost, err)
	}

	mediaID, err := p.deps.Submitter.AddDraft(ctx, tok.Value, wechat.Article{
		Title:              title,
		Author:             p.opts.Author,
		HTML:               content,
		SourceURL:          ref.CanonicalURL,
		ThumbMediaID:       thumb.MediaID,
		AllowComments:      p.opts.AllowComments,
		OnlyFansCanComment: p.opts.OnlyFansCanComment,
	})
	if err != nil {
		return withFailure(res, StageSubmit, err)
	}

	res.Status = StatusSuccess
	res.MediaID = mediaID
	return res
}

func (p *Publisher) logResult(res ItemResult) {
	switch res.Status {
	case StatusSuccess:
		p.logf("  ok: %q → draft %s (%d/%d images)\n", res.Title, res.MediaID, res.RehostedImages(), len(res.Images))
	case StatusSkipped:
		p.logf("  skipped: %s\n", res.Reason)
	default:
		p.logf("  failed at %s: %s\n", res.Stage, res.Error)
	}
}

func (p *Publisher) record(ctx context.Context, runID string, res ItemResult) {
	_, err := p.deps.History.RecordDraft(ctx, store.DraftInput{
		RunID:          runID,
		Identifier:     res.Identifier,
		Title:          res.Title,
		SourceURL:      res.SourceURL,
		MediaID:        res.MediaID,
		Status:         string(res.Status),
		Stage:          string(res.Stage),
		Error:          p.opts.Redactor.Redact(res.Error),
		Content:        res.Content,
		ImagesTotal:    len(res.Images),
		ImagesRehosted: res.RehostedImages(),
		RecordedAt:     p.now(),
	})
	if err != nil {
		p.logf("  warning: history: %v\n", err)
	}
}

// trackToken registers each new token value with the redactor.
func (p *Publisher) trackToken(tok wechat.AccessToken) {
	if tok.Value == "" || tok.Value == p.lastToken {
		return
	}
	p.lastToken = tok.Value
	p.opts.Redactor.AddSecret(tok.Value)
}

func failed(id string, stage Stage, err error) ItemResult {
	return withFailure(ItemResult{Identifier: id}, stage, err)
}

func withFailure(res ItemResult, stage Stage, err error) ItemResult {
	res.Status = StatusFailed
	res.Stage = stage
	res.Err = err
	res.Error = err.Error()
	return res
}

// dedupe normalizes identifiers and drops repeats, keeping first occurrences.
func dedupe(identifiers []string) []string {
	seen := make(map[string]bool, len(identifiers))
	out := make([]string, 0, len(identifiers))
	for _, raw := range identifiers {
		id := site.Normalize(raw)
		if id == "" || id == "." || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
