package riot

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/rankcrawl/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithRegion selects the platform host, e.g. "na1" -> https://na1.api.riotgames.com.
func WithRegion(region string) Option {
	return func(c *Client) {
		if region != "" {
			c.baseURL = "https://" + strings.ToLower(region) + ".api.riotgames.com"
		}
	}
}

// WithBaseURL overrides the API host; it takes precedence over WithRegion
// when applied after it.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithAPIKey sets the X-Riot-Token header value.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithQueue sets the ranked ladder queue and the match queue id filter.
func WithQueue(queueType string, queueID int) Option {
	return func(c *Client) {
		if queueType != "" {
			c.queueType = queueType
		}
		if queueID > 0 {
			c.queueID = queueID
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
