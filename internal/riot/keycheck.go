package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// Answers 200 for any live key and costs nothing against the match
	// windows.
	platformStatusPath = "/lol/status/v4/platform-data"

	defaultKeyCheckTimeout = 10 * time.Second
)

// ErrEmptyKey is returned by KeyChecker.Check for an empty key.
var ErrEmptyKey = errors.New("riot: API key is empty")

// KeyStatus is what the platform status endpoint said about a key.
type KeyStatus struct {
	Accepted     bool
	StatusCode   int
	Platform     string // platform id, e.g. "NA1"; empty when rejected
	Maintenances int
	Incidents    int
	Latency      time.Duration
}

// KeyChecker sends one request outside the rate limiter to find out
// whether a key is accepted before a run starts spending its budget.
type KeyChecker struct {
	httpClient *http.Client
	baseURL    string
}

// NewKeyChecker checks keys against platformURL, the same host the ladder
// is read from. timeout <= 0 uses a 10s default.
func NewKeyChecker(platformURL string, timeout time.Duration) *KeyChecker {
	if platformURL == "" {
		platformURL = DefaultPlatformBaseURL
	}
	if timeout <= 0 {
		timeout = defaultKeyCheckTimeout
	}
	return &KeyChecker{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(platformURL, "/"),
	}
}

// Check reports whether Riot accepts apiKey. A 401 or 403 is a definite
// answer and returns a rejected status with a nil error. Anything else
// that is not a 200 returns a *FetchError, since validity is then unknown.
func (k *KeyChecker) Check(ctx context.Context, apiKey string) (KeyStatus, error) {
	if apiKey == "" {
		return KeyStatus{}, ErrEmptyKey
	}
	url := k.baseURL + platformStatusPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return KeyStatus{}, fmt.Errorf("building key check for %s: %w", maskKey(apiKey), err)
	}
	req.Header.Set(tokenHeader, apiKey)

	start := time.Now()
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return KeyStatus{}, &FetchError{Kind: KindTransient, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	status := KeyStatus{StatusCode: resp.StatusCode, Latency: time.Since(start)}
	if err != nil {
		return status, &FetchError{Kind: KindTransient, StatusCode: resp.StatusCode, URL: url, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		status.Accepted = true
		doc := gjson.ParseBytes(body)
		status.Platform = doc.Get("id").String()
		status.Maintenances = len(doc.Get("maintenances").Array())
		status.Incidents = len(doc.Get("incidents").Array())
		return status, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return status, nil
	}

	kind := KindFatal
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		kind = KindTransient
	}
	snippet := body
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody]
	}
	return status, &FetchError{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		URL:        url,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
