package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	defaultTimeout     = 45 * time.Second
	defaultBaseURL     = "https://bulbapedia.bulbagarden.net"
	defaultBaseDelay   = 3 * time.Second
	defaultDelayJitter = 1 * time.Second
)

// Fetch outcome taxonomy. Not-found is a valid, non-retryable outcome;
// transient failures are retried by the caller on backoffSchedule; any
// other error is fatal to the resource (and, for the crawl driver, to
// the run).
var (
	errNotFound  = errors.New("page not found")
	errTransient = errors.New("transient fetch failure")
)

// backoffSchedule is the one escalating retry schedule shared by every
// caller and transport. Exhausting it turns a transient failure fatal.
var backoffSchedule = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

// fetchTransport issues one request and reports the raw result. Retry
// policy deliberately lives in the callers, so the plain HTTP and the
// browser transports share one schedule.
type fetchTransport interface {
	fetch(ctx context.Context, pageURL string) (statusCode int, body string, err error)
}

// httpTransport is the default transport: a shared http.Client with a
// scraping-friendly user agent.
type httpTransport struct {
	client    *http.Client
	userAgent string
}

func newHTTPTransport() *httpTransport {
	return &httpTransport{
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
	}
}

func (t *httpTransport) fetch(ctx context.Context, pageURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(bodyBytes), nil
}

// browserTransport renders the page in headless Chrome. Used when the
// source starts serving challenge pages to plain HTTP clients; it is a
// normal navigation, nothing stealthier than that.
type browserTransport struct {
	timeout time.Duration
}

func newBrowserTransport() *browserTransport {
	return &browserTransport{timeout: defaultTimeout}
}

func (t *browserTransport) fetch(ctx context.Context, pageURL string) (int, string, error) {
	browserCtx, cancelBrowser := chromedp.NewContext(ctx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, t.timeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return 0, "", err
	}
	// Chrome gives no status code back; MediaWiki's missing-page marker
	// stands in for a 404.
	if strings.Contains(html, "There is currently no text in this page") ||
		strings.Contains(html, "noarticletext") {
		return http.StatusNotFound, html, nil
	}
	return http.StatusOK, html, nil
}

// challengeSignatures mark anti-abuse interstitials that arrive with a
// 200 status. They count as transient failures, same as a 429.
var challengeSignatures = []string{
	"Checking your browser before accessing",
	"cf-browser-verification",
	"Rate limit exceeded",
	"Attention Required! | Cloudflare",
}

func isChallengePage(body string) bool {
	for _, sig := range challengeSignatures {
		if strings.Contains(body, sig) {
			return true
		}
	}
	return false
}

// FetchClient wraps a transport with the source's politeness rules: a
// mandatory randomized delay between consecutive requests and a
// classification of every outcome into the taxonomy above. One shared
// instance serves the whole process; the watermark is what serializes
// request spacing across scrapers.
type FetchClient struct {
	transport   fetchTransport
	baseURL     string
	baseDelay   time.Duration
	delayJitter time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

func newFetchClient(transport fetchTransport, baseURL string) *FetchClient {
	return &FetchClient{
		transport:   transport,
		baseURL:     baseURL,
		baseDelay:   defaultBaseDelay,
		delayJitter: defaultDelayJitter,
	}
}

// pageURL builds the wiki URL for a page title.
func (fc *FetchClient) pageURL(title string) string {
	return fc.baseURL + "/wiki/" + url.PathEscape(title)
}

// waitTurn blocks until the inter-request delay since the previous
// fetch has elapsed, then claims the watermark.
func (fc *FetchClient) waitTurn(ctx context.Context) error {
	fc.mu.Lock()
	delay := fc.baseDelay
	if fc.delayJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(2*fc.delayJitter))) - fc.delayJitter
	}
	wait := time.Until(fc.lastRequest.Add(delay))
	fc.lastRequest = time.Now().Add(wait)
	fc.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchPage retrieves one wiki page by title. The returned error is nil
// on success, wraps errNotFound for missing pages, wraps errTransient
// for rate limiting / challenges / server hiccups, and is anything else
// for fatal conditions. No retrying happens here.
func (fc *FetchClient) fetchPage(ctx context.Context, title string) (string, error) {
	if err := fc.waitTurn(ctx); err != nil {
		return "", err
	}

	pageURL := fc.pageURL(title)
	status, body, err := fc.transport.fetch(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Timeouts and transport hiccups are worth a later retry.
		return "", fmt.Errorf("%w: %v", errTransient, err)
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return "", fmt.Errorf("%w: %s", errNotFound, title)
	case status == http.StatusForbidden || status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout || status >= 500:
		return "", fmt.Errorf("%w: status %d for %s", errTransient, status, title)
	case status != http.StatusOK:
		return "", fmt.Errorf("unexpected status %d for %s", status, title)
	}

	if isChallengePage(body) {
		log.Printf("[W] [Fetch] Challenge page served for %q", title)
		return "", fmt.Errorf("%w: anti-abuse challenge for %s", errTransient, title)
	}

	return body, nil
}
