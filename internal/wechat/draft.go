package wechat

import (
	"context"
	"fmt"
	"net/url"
)

const draftAddPath = "/cgi-bin/draft/add"

// Article is one draft as submitted to the platform.
type Article struct {
	Title              string
	Author             string
	HTML               string
	SourceURL          string
	ThumbMediaID       string // empty falls back to the client's default
	AllowComments      bool
	OnlyFansCanComment bool
}

// draftArticle is the wire shape; field set and names are fixed by the platform.
type draftArticle struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	Digest             string `json:"digest"`
	Content            string `json:"content"`
	ContentSourceURL   string `json:"content_source_url"`
	ThumbMediaID       string `json:"thumb_media_id"`
	NeedOpenComment    int    `json:"need_open_comment"`
	OnlyFansCanComment int    `json:"only_fans_can_comment"`
}

type draftRequest struct {
	Articles []draftArticle `json:"articles"`
}

type draftResponse struct {
	apiStatus
	MediaID string `json:"media_id"`
}

func (c *Client) payload(a Article) draftArticle {
	thumb := a.ThumbMediaID
	if thumb == "" {
		thumb = c.defaultThumb
	}
	return draftArticle{
		Title:              a.Title,
		Author:             a.Author,
		Digest:             "",
		Content:            a.HTML,
		ContentSourceURL:   a.SourceURL,
		ThumbMediaID:       thumb,
		NeedOpenComment:    boolInt(a.AllowComments),
		OnlyFansCanComment: boolInt(a.OnlyFansCanComment),
	}
}

// AddDraft submits a single-article draft and returns its media id.
// A response without media_id is returned as *SubmitError with the raw code/message.
func (c *Client) AddDraft(ctx context.Context, token string, a Article) (string, error) {
	q := url.Values{}
	q.Set("access_token", token)

	req := draftRequest{Articles: []draftArticle{c.payload(a)}}

	var resp draftResponse
	if err := c.postJSON(ctx, c.endpoint(draftAddPath, q), req, &resp); err != nil {
		return "", fmt.Errorf("create draft: %w", err)
	}
	if resp.MediaID == "" {
		return "", &SubmitError{APIError{Code: resp.ErrCode, Message: resp.ErrMsg}}
	}
	return resp.MediaID, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
