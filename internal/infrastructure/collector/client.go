package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/IgorGrieder/linkstats/pkg/httpclient"
)

// MaxFieldLength caps the package and message fields accepted by the collector.
const MaxFieldLength = 48

var ErrNotConfigured = errors.New("log collector not configured")

type Entry struct {
	Stack   string `json:"stack"`
	Level   string `json:"level"`
	Package string `json:"package"`
	Message string `json:"message"`
}

type sendResponse struct {
	LogID string `json:"logID"`
}

type Client struct {
	http  *httpclient.Client
	url   string
	token string
}

func NewClient(http *httpclient.Client, url, token string) *Client {
	return &Client{http: http, url: strings.TrimSpace(url), token: token}
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Send forwards one entry and returns the collector's log id.
func (c *Client) Send(ctx context.Context, entry Entry) (string, error) {
	if c == nil || c.url == "" {
		return "", ErrNotConfigured
	}

	entry.Package = Truncate(entry.Package, MaxFieldLength)
	entry.Message = Truncate(entry.Message, MaxFieldLength)

	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	resp, err := c.http.Post(ctx, c.url, entry, headers)
	if err != nil {
		return "", fmt.Errorf("send log entry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("send log entry: unexpected status %s", resp.Status)
	}

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode collector response: %w", err)
	}
	return body.LogID, nil
}
