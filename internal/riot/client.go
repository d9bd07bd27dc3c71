package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"match-snapshots/internal/logging"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const (
	// API base URLs. League endpoints live on the platform host, match-v5 on
	// the regional routing host.
	DefaultPlatformBaseURL = "https://na1.api.riotgames.com"
	DefaultRegionalBaseURL = "https://americas.api.riotgames.com"

	tokenHeader = "X-Riot-Token"

	maxErrorBody = 512
)

// RetryPolicy holds the wait applied to each retryable response class.
type RetryPolicy struct {
	RateLimitFallback time.Duration // 429 without a usable Retry-After
	RateLimitMargin   time.Duration // added on top of Retry-After
	ServerErrorWait   time.Duration // 5xx
	NetworkErrorWait  time.Duration // transport failure, no response
	MaxRetries        int           // 0 means retry forever
}

// DefaultRetryPolicy mirrors the provider's guidance for development keys.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RateLimitFallback: 10 * time.Second,
		RateLimitMargin:   time.Second,
		ServerErrorWait:   5 * time.Second,
		NetworkErrorWait:  10 * time.Second,
	}
}

// ClientConfig is everything needed to build a Client. There are no
// package-level defaults read from the environment.
type ClientConfig struct {
	APIKey          string
	PlatformBaseURL string
	RegionalBaseURL string
	Windows         []Window
	Retry           RetryPolicy
	RequestTimeout  time.Duration // per attempt, counted from when the limiter releases it
	FetchDeadline   time.Duration // per Fetch across all retries, 0 = none
}

// Client is a rate-limited Riot API client. Requests share one Limiter, so
// the budget holds no matter how many goroutines call Fetch.
type Client struct {
	apiKey        string
	platformURL   string
	regionalURL   string
	fetchDeadline time.Duration
	retry         RetryPolicy

	limiter *Limiter
	http    *retryablehttp.Client
	log     logrus.FieldLogger
}

// NewClient creates a new Riot API client.
func NewClient(cfg ClientConfig, log logrus.FieldLogger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("riot: API key is required")
	}
	if log == nil {
		log = logging.Discard()
	}
	if cfg.PlatformBaseURL == "" {
		cfg.PlatformBaseURL = DefaultPlatformBaseURL
	}
	if cfg.RegionalBaseURL == "" {
		cfg.RegionalBaseURL = DefaultRegionalBaseURL
	}
	if len(cfg.Windows) == 0 {
		cfg.Windows = DefaultWindows
	}
	for _, w := range cfg.Windows {
		if w.Limit <= 0 || w.Period <= 0 {
			return nil, fmt.Errorf("riot: invalid rate window %d/%s", w.Limit, w.Period)
		}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	c := &Client{
		apiKey:        cfg.APIKey,
		platformURL:   strings.TrimRight(cfg.PlatformBaseURL, "/"),
		regionalURL:   strings.TrimRight(cfg.RegionalBaseURL, "/"),
		fetchDeadline: cfg.FetchDeadline,
		retry:         cfg.Retry,
		limiter:       NewLimiter(cfg.Windows...),
		log:           log.WithField("component", "riot"),
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: &limitedTransport{limiter: c.limiter, base: base, timeout: cfg.RequestTimeout},
	}
	rc.Logger = logging.RetryLogger{Log: c.log}
	rc.RetryMax = cfg.Retry.MaxRetries
	if rc.RetryMax <= 0 {
		rc.RetryMax = math.MaxInt32
	}
	rc.CheckRetry = c.checkRetry
	rc.Backoff = c.backoff
	rc.ErrorHandler = c.giveUp
	c.http = rc

	c.log.Debugf("Using API key: %s", maskKey(cfg.APIKey))
	return c, nil
}

type responseClass int

const (
	classOK responseClass = iota
	classRateLimited
	classServerError
	classNetwork
	classFatal
)

func classify(resp *http.Response, err error) responseClass {
	if err != nil || resp == nil {
		return classNetwork
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return classOK
	case resp.StatusCode == http.StatusTooManyRequests:
		return classRateLimited
	case resp.StatusCode >= 500 && resp.StatusCode <= 599:
		return classServerError
	default:
		return classFatal
	}
}

func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	switch classify(resp, err) {
	case classRateLimited, classServerError, classNetwork:
		return true, nil
	default:
		return false, nil
	}
}

func (c *Client) backoff(_, _ time.Duration, attempt int, resp *http.Response) time.Duration {
	switch classify(resp, nil) {
	case classRateLimited:
		wait := retryAfter(resp, c.retry.RateLimitFallback) + c.retry.RateLimitMargin
		c.log.Warnf("[429 Rate Limited] waiting %.1fs before attempt %d", wait.Seconds(), attempt+2)
		return wait
	case classServerError:
		c.log.Warnf("[Server error %d] retrying in %.1fs", resp.StatusCode, c.retry.ServerErrorWait.Seconds())
		return c.retry.ServerErrorWait
	default:
		c.log.Warnf("[Network error] retrying in %.1fs", c.retry.NetworkErrorWait.Seconds())
		return c.retry.NetworkErrorWait
	}
}

// giveUp runs when retries are exhausted or the context ended mid-loop.
func (c *Client) giveUp(resp *http.Response, err error, attempts int) (*http.Response, error) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}
	if err == nil {
		err = fmt.Errorf("giving up after %d attempt(s)", attempts)
	}
	return nil, &FetchError{Kind: KindTransient, StatusCode: status, Err: err}
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if resp == nil {
		return fallback
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

var errBodyRead = errors.New("reading response body")

// Fetch issues a GET for rawURL with the given query and returns the raw
// JSON body of a 200 response. Transient failures are retried according to
// the policy; any other status fails immediately with a KindFatal error.
func (c *Client) Fetch(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	if c.fetchDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchDeadline)
		defer cancel()
	}
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	for {
		body, err := c.fetchOnce(ctx, rawURL)
		if err == nil || !errors.Is(err, errBodyRead) {
			return body, err
		}
		// Connection dropped mid-body: same treatment as a transport failure.
		c.log.Warnf("[Network error] %v, retrying in %.1fs", err, c.retry.NetworkErrorWait.Seconds())
		if serr := sleepContext(ctx, c.retry.NetworkErrorWait); serr != nil {
			return nil, &FetchError{Kind: KindTransient, URL: rawURL, Err: serr}
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindFatal, URL: rawURL, Err: err}
	}
	req.Header.Set(tokenHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.URL = rawURL
			return nil, fe
		}
		return nil, &FetchError{Kind: KindTransient, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &FetchError{
			Kind:       KindFatal,
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBodyRead, err)
	}
	return body, nil
}

// maskKey shows only the prefix and last four characters of a key.
func maskKey(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
