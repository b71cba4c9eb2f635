package sources

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Client is the shared polite HTTP fetcher for the government sources. Every
// request carries the configured user agent, waits the configured interval
// between attempts, and retries transient failures a bounded number of times.
// Backoff and retries live here, in the adapter layer; the linking engine
// never performs network I/O.
type Client struct {
	HTTP       *http.Client
	UserAgent  string
	Interval   time.Duration
	MaxRetries int
	Logger     *log.Logger
}

func NewClient(userAgent string, interval time.Duration, maxRetries int, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[FETCH] ", log.LstdFlags)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		UserAgent:  userAgent,
		Interval:   interval,
		MaxRetries: maxRetries,
		Logger:     logger,
	}
}

// Get fetches a URL and returns the raw body bytes.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.Interval * time.Duration(attempt+1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			c.Logger.Printf("request error: %v — retry", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("http %d fetching %s", resp.StatusCode, url)
			c.Logger.Printf("HTTP %d: %s — retry", resp.StatusCode, url)
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.MaxRetries, lastErr)
}

// Sleep waits the politeness interval between consecutive requests, honoring
// cancellation.
func (c *Client) Sleep(ctx context.Context) error {
	if c.Interval <= 0 {
		return nil
	}
	select {
	case <-time.After(c.Interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DecodeEUCJP converts an EUC-JP page (ShugiinTV) to UTF-8.
func DecodeEUCJP(b []byte) (string, error) {
	out, _, err := transform.Bytes(japanese.EUCJP.NewDecoder(), b)
	if err != nil {
		return "", fmt.Errorf("decode euc-jp: %w", err)
	}
	return string(out), nil
}

// DecodeShiftJIS converts a Shift_JIS page (shugiin.go.jp) to UTF-8.
func DecodeShiftJIS(b []byte) (string, error) {
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return "", fmt.Errorf("decode shift_jis: %w", err)
	}
	return string(out), nil
}

// IsEmptyHTML reports whether a page has effectively no content once
// whitespace is removed. ShugiinTV serves such husks for retracted ids.
func IsEmptyHTML(text string, threshold int) bool {
	if threshold <= 0 {
		threshold = 50
	}
	stripped := strings.Join(strings.Fields(text), "")
	return len(stripped) < threshold
}
