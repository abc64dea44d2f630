package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/spacesedan/tickerpulse/internal/models"
)

const (
	NEWS_API_ENDPOINT = "https://newsapi.org/v2/everything"
	NEWS_DATE_LAYOUT  = "2006-01-02"
)

type NewsAPIClient struct {
	Client         *http.Client
	APIKey         string
	Endpoint       string
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewNewsAPIClient(apiKey, endpoint string, maxRetries int) *NewsAPIClient {
	if endpoint == "" {
		endpoint = NEWS_API_ENDPOINT
	}
	if maxRetries <= 0 {
		maxRetries = MAX_RETRIES
	}
	return &NewsAPIClient{
		Client:         &http.Client{Timeout: 30 * time.Second},
		APIKey:         apiKey,
		Endpoint:       endpoint,
		MaxRetries:     maxRetries,
		InitialBackoff: INITIAL_BACKOFF,
		MaxBackoff:     MAX_BACKOFF,
	}
}

// EverythingQuery describes one /v2/everything search. From and To are
// sent as calendar dates, both inclusive.
type EverythingQuery struct {
	Query    string
	SearchIn string
	SortBy   string
	Language string
	From     time.Time
	To       time.Time
}

func (q EverythingQuery) values() url.Values {
	v := url.Values{}
	v.Set("q", q.Query)
	if q.SearchIn != "" {
		v.Set("searchIn", q.SearchIn)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	if !q.From.IsZero() {
		v.Set("from", q.From.Format(NEWS_DATE_LAYOUT))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.Format(NEWS_DATE_LAYOUT))
	}
	return v
}

func (n *NewsAPIClient) SearchEverything(ctx context.Context, q EverythingQuery) (*models.NewsAPIEverythingResponse, error) {
	if n.APIKey == "" {
		slog.Error("[NewsAPIClient] API key is missing")
		return nil, errors.New("[NewsAPIClient] API key is missing")
	}

	endpoint, err := url.Parse(n.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("[NewsAPIClient] Failed to parse URL: %w", err)
	}
	endpoint.RawQuery = q.values().Encode()

	var lastErr error
	backoff := NewBackoff(n.InitialBackoff, n.MaxBackoff, 0)

	for attempt := 1; attempt <= n.MaxRetries; attempt++ {
		slog.Debug("[NewsAPIClient] Searching articles",
			slog.String("query", q.Query), slog.Int("attempt", attempt))

		response, retry, err := n.do(ctx, endpoint.String())
		if err == nil {
			slog.Debug("[NewsAPIClient] Successfully fetched articles",
				slog.String("query", q.Query),
				slog.Int("count", len(response.Articles)))
			return response, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}

		if attempt == n.MaxRetries {
			break
		}
		delay, _ := backoff.Next(0)
		slog.Warn("[NewsAPIClient] Request failed, retrying...",
			slog.String("error", err.Error()),
			slog.Duration("backoff", delay), slog.Int("attempt", attempt))
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}

	slog.Error("[NewsAPIClient] Failed after max retries", slog.Int("max_retries", n.MaxRetries))
	return nil, fmt.Errorf("[NewsAPIClient] failed after %d attempts: %w", n.MaxRetries, lastErr)
}

// do performs a single request. retry reports whether the failure is worth
// another attempt.
func (n *NewsAPIClient) do(ctx context.Context, endpoint string) (*models.NewsAPIEverythingResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("X-Api-Key", n.APIKey)
	req.Header.Set("User-Agent", USER_AGENT)

	res, err := n.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		slog.Warn("[NewsAPIClient] Request failed", slog.String("error", err.Error()))
		return nil, true, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		slog.Error("[NewsAPIClient] Failed to read response body", slog.String("error", err.Error()))
		return nil, true, err
	}

	switch {
	case res.StatusCode == http.StatusOK:
		var response models.NewsAPIEverythingResponse
		if err := json.Unmarshal(body, &response); err != nil {
			slog.Error("[NewsAPIClient] Failed to parse JSON response", slog.String("error", err.Error()))
			return nil, false, fmt.Errorf("[NewsAPIClient] invalid response: %w", err)
		}
		if response.Status == "error" {
			return nil, false, fmt.Errorf("[NewsAPIClient] %s: %s", response.Code, response.Message)
		}
		return &response, false, nil
	case res.StatusCode == http.StatusBadRequest:
		slog.Warn("[NewsAPIClient] Bad request: check query parameters")
		return nil, false, fmt.Errorf("[NewsAPIClient] Bad request: %s", preview(body))
	case res.StatusCode == http.StatusUnauthorized:
		slog.Error("[NewsAPIClient] Invalid API Key, check credentials")
		return nil, false, errors.New("[NewsAPIClient] Invalid API Key, check credentials")
	case res.StatusCode == http.StatusForbidden:
		slog.Error("[NewsAPIClient] Access forbidden, check API key permissions")
		return nil, false, errors.New("[NewsAPIClient] API key lacks required permissions")
	case res.StatusCode == http.StatusTooManyRequests:
		slog.Warn("[NewsAPIClient] Rate limit exceeded")
		return nil, true, errors.New("[NewsAPIClient] rate limit exceeded")
	case res.StatusCode >= http.StatusInternalServerError:
		slog.Warn("[NewsAPIClient] Server Error", slog.Int("statusCode", res.StatusCode))
		return nil, true, fmt.Errorf("[NewsAPIClient] server error: status code %d", res.StatusCode)
	default:
		slog.Warn("[NewsAPIClient] Unexpected Response", slog.Int("statusCode", res.StatusCode))
		return nil, false, fmt.Errorf("[NewsAPIClient] unexpected status code %d", res.StatusCode)
	}
}

func preview(body []byte) string {
	raw := string(body)
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return raw
}
