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
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/models"
)

const (
	TWITTER_SEARCH_ENDPOINT  = "https://api.twitter.com/2/tweets/search/recent"
	TWITTER_RESET_HEADER     = "x-rate-limit-reset"
	TWITTER_RECENT_MAX_RANGE = 7 * 24 * time.Hour
	TWITTER_MAX_RATE_WAIT    = 15 * time.Minute
)

type TwitterOptions struct {
	Endpoint          string
	MaxResults        int
	RequestsPerMinute int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	MaxRateLimitWait  time.Duration
}

type TwitterClient struct {
	Client  *http.Client
	opts    TwitterOptions
	limiter *rate.Limiter
	now     func() time.Time
}

// NewTwitterClient authenticates every request with the app bearer token
func NewTwitterClient(ctx context.Context, bearerToken string, opts TwitterOptions) *TwitterClient {
	if opts.Endpoint == "" {
		opts.Endpoint = TWITTER_SEARCH_ENDPOINT
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = INITIAL_BACKOFF
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = MAX_BACKOFF
	}
	if opts.MaxRateLimitWait <= 0 {
		opts.MaxRateLimitWait = TWITTER_MAX_RATE_WAIT
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = 30 * time.Second

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60.0)
	}

	return &TwitterClient{
		Client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// SearchRecent returns the first page of recent-search results for query.
// A 429 is waited out with bounded exponential backoff; once the wait
// budget is spent the error wraps apperrors.ErrRateLimited.
func (tc *TwitterClient) SearchRecent(ctx context.Context, query string, startTime time.Time) (*models.TwitterSearchResponse, error) {
	parsedUrl, err := url.Parse(tc.opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("[TwitterClient] Failed to parse URL: %w", err)
	}
	queryParams := parsedUrl.Query()
	queryParams.Set("query", query)
	queryParams.Set("tweet.fields", "created_at,lang,author_id")
	if tc.opts.MaxResults > 0 {
		queryParams.Set("max_results", strconv.Itoa(tc.opts.MaxResults))
	}
	if !startTime.IsZero() {
		queryParams.Set("start_time", startTime.UTC().Format(time.RFC3339))
	}
	parsedUrl.RawQuery = queryParams.Encode()

	rateLimitBackoff := NewBackoff(tc.opts.InitialBackoff, tc.opts.MaxBackoff, tc.opts.MaxRateLimitWait)
	serverBackoff := NewBackoff(tc.opts.InitialBackoff, tc.opts.MaxBackoff, 0)
	serverFailures := 0

	for {
		if err := tc.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("[TwitterClient] rate limiter: %w", err)
		}

		resp, err := tc.get(ctx, parsedUrl.String())
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var out models.TwitterSearchResponse
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("[TwitterClient] decode response: %w", err)
			}
			slog.Debug("[TwitterClient] Fetched tweets",
				slog.String("query", query),
				slog.Int("count", len(out.Data)))
			return &out, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			hint := tc.resetHint(resp.Header)
			drain(resp)
			delay, ok := rateLimitBackoff.Next(hint)
			if !ok {
				slog.Error("[TwitterClient] Rate limit wait budget exhausted",
					slog.Duration("waited", rateLimitBackoff.Waited()))
				return nil, fmt.Errorf("[TwitterClient] waited %s: %w", rateLimitBackoff.Waited(), apperrors.ErrRateLimited)
			}
			slog.Warn("[TwitterClient] 429 Too Many Requests - waiting before retry",
				slog.Duration("backoff", delay),
				slog.Duration("waited", rateLimitBackoff.Waited()))
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}

		case resp.StatusCode >= http.StatusInternalServerError:
			drain(resp)
			serverFailures++
			if serverFailures >= MAX_RETRIES {
				return nil, fmt.Errorf("[TwitterClient] server error %d after %d attempts", resp.StatusCode, serverFailures)
			}
			delay, _ := serverBackoff.Next(0)
			slog.Warn("[TwitterClient] Server error, retrying",
				slog.Int("statusCode", resp.StatusCode),
				slog.Int("attempt", serverFailures),
				slog.Duration("backoff", delay))
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return nil, tc.apiError(resp)
		}
	}
}

func (tc *TwitterClient) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := tc.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[TwitterClient] request failed: %w", err)
	}
	return resp, nil
}

// resetHint converts the x-rate-limit-reset epoch header into a wait
func (tc *TwitterClient) resetHint(h http.Header) time.Duration {
	raw := h.Get(TWITTER_RESET_HEADER)
	if raw == "" {
		return 0
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	wait := time.Unix(epoch, 0).Sub(tc.now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (tc *TwitterClient) apiError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var apiErr models.TwitterErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Title != "" {
		return fmt.Errorf("[TwitterClient] status %d: %s: %s", resp.StatusCode, apiErr.Title, apiErr.Detail)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return errors.New("[TwitterClient] bearer token rejected")
	}
	return fmt.Errorf("[TwitterClient] status %d: %s", resp.StatusCode, preview(body))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
