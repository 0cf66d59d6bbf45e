// Package wiki fetches rendered article HTML from a MediaWiki parse API.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/wikirefs/internal/metrics"
)

// Page is a parsed article as returned by action=parse.
type Page struct {
	Title  string `json:"title"`
	PageID int64  `json:"pageid"`
	RevID  int64  `json:"revid"`
	HTML   string `json:"text"`

	// Permalink points at the exact revision that was parsed.
	Permalink string `json:"permalink,omitempty"`
}

// Fetcher returns the parsed HTML of an article by title.
type Fetcher interface {
	FetchParsed(ctx context.Context, title string) (*Page, error)
}

// Client talks to one wiki's api.php endpoint.
type Client struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client

	// Stats records the latency of every API round trip.
	Stats *FetchStats

	// Backoff computes the wait before retry attempt n. Defaults to Backoff.
	Backoff func(attempt int) time.Duration
}

func NewClient(apiURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL:    apiURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		Stats:   NewFetchStats(time.Hour),
		Backoff: Backoff,
	}
}

type parseResponse struct {
	Parse *struct {
		Title  string `json:"title"`
		PageID int64  `json:"pageid"`
		RevID  int64  `json:"revid"`
		Text   string `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// FetchParsed retrieves the rendered HTML of title, retrying transient
// failures up to MaxRetries times.
func (c *Client) FetchParsed(ctx context.Context, title string) (*Page, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("fetch parsed page: empty title")
	}
	var lastErr error
	for attempt := range MaxRetries {
		page, err := c.fetchOnce(ctx, title)
		if err == nil {
			metrics.FetchesTotal.WithLabelValues("ok").Inc()
			return page, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		metrics.FetchesTotal.WithLabelValues("retry").Inc()
		select {
		case <-time.After(c.Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	metrics.FetchesTotal.WithLabelValues("error").Inc()
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, title string) (*Page, error) {
	q := url.Values{}
	q.Set("action", "parse")
	q.Set("page", title)
	q.Set("prop", "text|revid")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("formatversion", "2")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	c.Stats.Record(elapsed, err != nil || resp.StatusCode != http.StatusOK)
	metrics.FetchDuration.Observe(elapsed.Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", title, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %q: status %d: %s", title, resp.StatusCode, truncate(string(body), 200))
	}

	var pr parseResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decode parse response: %w", err)
	}
	if pr.Error != nil {
		if pr.Error.Code == "missingtitle" || pr.Error.Code == "invalidtitle" {
			return nil, &NotFoundError{Title: title, Code: pr.Error.Code}
		}
		if pr.Error.Code == "maxlag" || pr.Error.Code == "ratelimited" {
			return nil, &RetryableError{StatusCode: resp.StatusCode, Message: pr.Error.Info}
		}
		return nil, fmt.Errorf("wiki api error: %s: %s", pr.Error.Code, pr.Error.Info)
	}
	if pr.Parse == nil {
		return nil, fmt.Errorf("wiki api returned no parse result for %q", title)
	}

	return &Page{
		Title:     pr.Parse.Title,
		PageID:    pr.Parse.PageID,
		RevID:     pr.Parse.RevID,
		HTML:      pr.Parse.Text,
		Permalink: c.permalink(pr.Parse.RevID),
	}, nil
}

// permalink builds index.php?oldid=N next to the configured api.php.
func (c *Client) permalink(revID int64) string {
	if revID == 0 {
		return ""
	}
	base := strings.TrimSuffix(c.apiURL, "api.php")
	return base + "index.php?oldid=" + strconv.FormatInt(revID, 10)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// NotFoundError reports a title the wiki does not know.
type NotFoundError struct {
	Title string
	Code  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("page %q not found (%s)", e.Title, e.Code)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
