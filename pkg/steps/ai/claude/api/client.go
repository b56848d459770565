package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/careertwin/pkg/security"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"
)

// ErrorResponse represents the API's error response.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// APIError is returned for non-200 responses.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return "anthropic: " + e.Type + ": " + e.Message
	}
	return "anthropic: " + e.Message
}

// Client represents the Anthropic API client.
type Client struct {
	httpClient *http.Client
	apiKey     string
	APIVersion string
	BaseURL    string
	urlOptions security.OutboundURLOptions
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) { cl.httpClient.Timeout = d }
}

// WithLocalNetworks allows http and local targets, for self-hosted proxies
// and tests.
func WithLocalNetworks() ClientOption {
	return func(cl *Client) {
		cl.urlOptions = security.OutboundURLOptions{AllowHTTP: true, AllowLocalNetworks: true}
	}
}

// NewClient initializes and returns a new API client.
func NewClient(apiKey string, baseURL string, options ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("no API key for anthropic")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIVersion: defaultAPIVersion,
	}
	for _, o := range options {
		o(c)
	}
	if err := security.ValidateOutboundURL(c.BaseURL, c.urlOptions); err != nil {
		return nil, errors.Wrap(err, "invalid anthropic base URL")
	}
	return c, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.APIVersion)
	req.Header.Set("Content-Type", "application/json")
}
