package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// rapidClient issues authenticated GET requests against a RapidAPI host.
type rapidClient struct {
	client  *http.Client
	apiKey  string
	host    string
	baseURL string
}

func newRapidClient(apiKey, host, baseURL string) rapidClient {
	if baseURL == "" {
		baseURL = "https://" + host
	}
	return rapidClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		apiKey:  apiKey,
		host:    host,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// getJSON fetches path with query params and decodes the body into out.
// Every failure is reported as ErrUpstream.
func (c rapidClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: create request %s: %w", ErrUpstream, path, err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)
	req.Header.Set("User-Agent", "handlescore/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %w", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s status %d: %s", ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrUpstream, path, err)
	}
	return nil
}

// cleanHandle strips the @ prefix and surrounding whitespace.
func cleanHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}
