package sources

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/clients"
	"github.com/spacesedan/tickerpulse/internal/models"
)

const (
	DefaultNewsLookback      = 14 * 24 * time.Hour
	DefaultNewsMinConfidence = 0.9

	// NewsAPI replaces the fields of articles pulled by the publisher
	removedTitle = "[Removed]"
)

type newsSearcher interface {
	SearchEverything(ctx context.Context, q clients.EverythingQuery) (*models.NewsAPIEverythingResponse, error)
}

// NewsAdapter turns NewsAPI article titles into news TextItems
type NewsAdapter struct {
	client        newsSearcher
	minConfidence float64
	now           func() time.Time
}

func NewNewsAdapter(client newsSearcher, minConfidence float64) *NewsAdapter {
	return &NewsAdapter{
		client:        client,
		minConfidence: minConfidence,
		now:           time.Now,
	}
}

// WithClock replaces the clock used to compute the date range
func (a *NewsAdapter) WithClock(now func() time.Time) *NewsAdapter {
	a.now = now
	return a
}

func (a *NewsAdapter) Source() models.Source {
	return models.SourceNews
}

func (a *NewsAdapter) MinConfidence() float64 {
	return a.minConfidence
}

// Fetch searches titles in the inclusive calendar range [today-lookback, today]
// ordered by popularity.
func (a *NewsAdapter) Fetch(ctx context.Context, symbol string, lookback time.Duration) ([]models.TextItem, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if lookback <= 0 {
		lookback = DefaultNewsLookback
	}

	today := a.now()
	resp, err := a.client.SearchEverything(ctx, clients.EverythingQuery{
		Query:    symbol,
		SearchIn: "title",
		SortBy:   "popularity",
		Language: "en",
		From:     today.Add(-lookback),
		To:       today,
	})
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(models.SourceNews.String(), err)
	}

	items := make([]models.TextItem, 0, len(resp.Articles))
	skipped := 0
	for _, article := range resp.Articles {
		title := strings.TrimSpace(article.Title)
		if title == "" || title == removedTitle {
			skipped++
			continue
		}

		publishedAt, _ := time.Parse(time.RFC3339, article.PublishedAt)
		item, err := models.NewTextItem(models.SourceNews, title, article.URL, publishedAt)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, item)
	}

	slog.Debug("[NewsAdapter] Fetched headlines",
		slog.String("symbol", symbol),
		slog.Int("items", len(items)),
		slog.Int("skipped", skipped))
	return items, nil
}
