// Package digikey is a small client for the Digi-Key product information
// API v4. A part number decoded from a label is enough to pull everything
// needed to catalog the part.
package digikey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL  = "https://api.digikey.com"
	tokenPath       = "/v1/oauth2/token"
	productBasePath = "/products/v4"

	// Refresh the cached token a little before it actually expires.
	tokenExpiryMargin = 15 * time.Second
)

// Client calls the Digi-Key API with OAuth2 client-credentials, caching the
// access token until shortly before expiry.
type Client struct {
	http         *resty.Client
	clientID     string
	clientSecret string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// Option customizes a Client; used by tests to point at a local server.
type Option func(*Client)

func WithBaseURL(base string) Option {
	return func(c *Client) { c.http.SetBaseURL(base) }
}

func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		http:         resty.New().SetBaseURL(defaultBaseURL).SetTimeout(30 * time.Second),
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt.Add(-tokenExpiryMargin)) {
		return c.token, nil
	}

	var tok tokenResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"grant_type":    "client_credentials",
		}).
		SetResult(&tok).
		Post(tokenPath)
	if err != nil {
		return "", fmt.Errorf("error requesting digikey token: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("digikey token request failed: %s", res.Status())
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("digikey token response missing access_token")
	}

	c.token = tok.AccessToken
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 600
	}
	c.expiresAt = c.now().Add(time.Duration(expiresIn) * time.Second)
	return c.token, nil
}

// ProductDetails fetches product details for a Digi-Key or manufacturer
// part number. The part number is percent-encoded so embedded '/'
// characters survive the path.
func (c *Client) ProductDetails(ctx context.Context, partNumber string) (json.RawMessage, error) {
	if partNumber == "" {
		return nil, fmt.Errorf("no usable part number")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/search/%s/productdetails", productBasePath, url.PathEscape(partNumber))
	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Authorization":             "Bearer " + token,
			"X-DIGIKEY-Client-Id":       c.clientID,
			"X-DIGIKEY-Locale-Site":     "US",
			"X-DIGIKEY-Locale-Language": "en",
			"X-DIGIKEY-Locale-Currency": "USD",
			"X-DIGIKEY-Customer-Id":     "0",
			"Accept":                    "application/json",
		}).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("error requesting product details: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("digikey product lookup failed: %s", res.Status())
	}
	return json.RawMessage(res.Body()), nil
}

// LookupPartNumber picks the part number to query from parsed label
// fields, preferring the Digi-Key part number over the manufacturer's.
func LookupPartNumber(fields map[string]any) string {
	if pn, ok := fields["digikey_part_number"].(string); ok && pn != "" {
		return pn
	}
	if pn, ok := fields["mfr_part_number"].(string); ok && pn != "" {
		return pn
	}
	return ""
}
