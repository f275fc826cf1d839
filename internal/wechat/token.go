package wechat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// expiryMargin is subtracted from the declared lifetime so a token is never
// used in the last seconds before the platform invalidates it.
const expiryMargin = time.Minute

// AccessToken is the short-lived bearer credential for platform calls.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at now.
func (t AccessToken) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

type tokenResponse struct {
	apiStatus
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Credentials obtains and holds the access token for one app.
type Credentials struct {
	client    *Client
	appID     string
	appSecret string
	now       func() time.Time

	mu    sync.Mutex
	token AccessToken
}

// NewCredentials creates a credential manager. appID and appSecret are required.
func NewCredentials(client *Client, appID, appSecret string) (*Credentials, error) {
	if client == nil {
		return nil, errors.New("credentials: client is required")
	}
	if appID == "" || appSecret == "" {
		return nil, errors.New("credentials: app id and app secret are required")
	}
	return &Credentials{
		client:    client,
		appID:     appID,
		appSecret: appSecret,
		now:       time.Now,
	}, nil
}

// Acquire requests a fresh token from the platform, replacing any held token.
// A platform rejection is returned as *AuthError.
func (c *Credentials) Acquire(ctx context.Context) (AccessToken, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", c.appID)
	q.Set("secret", c.appSecret)

	var resp tokenResponse
	if err := c.client.getJSON(ctx, c.client.endpoint("/cgi-bin/token", q), &resp); err != nil {
		return AccessToken{}, fmt.Errorf("acquire access token: %w", err)
	}
	if resp.AccessToken == "" {
		return AccessToken{}, &AuthError{APIError{Code: resp.ErrCode, Message: resp.ErrMsg}}
	}

	lifetime := time.Duration(resp.ExpiresIn) * time.Second
	if lifetime > 2*expiryMargin {
		lifetime -= expiryMargin
	}
	tok := AccessToken{Value: resp.AccessToken, ExpiresAt: c.now().Add(lifetime)}

	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
	return tok, nil
}

// Token returns the held token while it is valid and acquires a new one otherwise.
func (c *Credentials) Token(ctx context.Context) (AccessToken, error) {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()

	if tok.Valid(c.now()) {
		return tok, nil
	}
	return c.Acquire(ctx)
}
