package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/clients"
	"github.com/spacesedan/tickerpulse/internal/models"
)

const DefaultSocialMinConfidence = 0.0

type tweetSearcher interface {
	SearchRecent(ctx context.Context, query string, startTime time.Time) (*models.TwitterSearchResponse, error)
}

// SocialAdapter reads the first page of Twitter recent search for a symbol
type SocialAdapter struct {
	client        tweetSearcher
	minConfidence float64
	now           func() time.Time
}

func NewSocialAdapter(client tweetSearcher, minConfidence float64) *SocialAdapter {
	return &SocialAdapter{
		client:        client,
		minConfidence: minConfidence,
		now:           time.Now,
	}
}

func (a *SocialAdapter) WithClock(now func() time.Time) *SocialAdapter {
	a.now = now
	return a
}

func (a *SocialAdapter) Source() models.Source {
	return models.SourceSocial
}

func (a *SocialAdapter) MinConfidence() float64 {
	return a.minConfidence
}

// SocialQuery excludes retweets and restricts to English
func SocialQuery(symbol string) string {
	return fmt.Sprintf("%s -is:retweet lang:en", symbol)
}

// Fetch returns tweet texts. A zero lookback, or one beyond what recent
// search covers, leaves the window to the endpoint default.
func (a *SocialAdapter) Fetch(ctx context.Context, symbol string, lookback time.Duration) ([]models.TextItem, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var startTime time.Time
	if lookback > 0 && lookback <= clients.TWITTER_RECENT_MAX_RANGE {
		startTime = a.now().Add(-lookback)
	}

	resp, err := a.client.SearchRecent(ctx, SocialQuery(symbol), startTime)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(models.SourceSocial.String(), err)
	}

	items := make([]models.TextItem, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		createdAt, _ := time.Parse(time.RFC3339, tweet.CreatedAt)
		item, err := models.NewTextItem(models.SourceSocial, tweet.Text, tweet.ID, createdAt)
		if err != nil {
			continue
		}
		items = append(items, item)
	}

	slog.Debug("[SocialAdapter] Fetched tweets",
		slog.String("symbol", symbol),
		slog.Int("items", len(items)))
	return items, nil
}
