package wechat

import (
	"context"
	"fmt"
	"net/url"
)

const (
	materialEndpoint = "/cgi-bin/material/add_material"
	uploadImgPath    = "/cgi-bin/media/uploadimg"
	mediaField       = "media"
)

// Material is a permanent library asset.
type Material struct {
	MediaID string
	URL     string
}

type materialResponse struct {
	apiStatus
	MediaID string `json:"media_id"`
	URL     string `json:"url"`
}

type uploadImgResponse struct {
	apiStatus
	URL string `json:"url"`
}

// UploadMaterial registers an image in the permanent media library. The returned
// media id is what drafts reference as their thumbnail.
func (c *Client) UploadMaterial(ctx context.Context, token, filename string, data []byte) (Material, error) {
	q := url.Values{}
	q.Set("access_token", token)
	q.Set("type", "image")

	var resp materialResponse
	if err := c.postFile(ctx, c.endpoint(materialEndpoint, q), mediaField, filename, data, &resp); err != nil {
		return Material{}, fmt.Errorf("upload material: %w", err)
	}
	if resp.MediaID == "" {
		return Material{}, &UploadError{Endpoint: "material", APIError: APIError{Code: resp.ErrCode, Message: resp.ErrMsg}}
	}
	return Material{MediaID: resp.MediaID, URL: resp.URL}, nil
}

// UploadImage uploads an image for use inside article content and returns
// its platform-hosted URL.
func (c *Client) UploadImage(ctx context.Context, token, filename string, data []byte) (string, error) {
	q := url.Values{}
	q.Set("access_token", token)

	var resp uploadImgResponse
	if err := c.postFile(ctx, c.endpoint(uploadImgPath, q), mediaField, filename, data, &resp); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if resp.URL == "" {
		return "", &UploadError{Endpoint: "uploadimg", APIError: APIError{Code: resp.ErrCode, Message: resp.ErrMsg}}
	}
	return resp.URL, nil
}
