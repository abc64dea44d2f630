package sources

import (
	"context"
	"strings"
	"time"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/models"
)

// SourceAdapter fetches recent text items for a ticker symbol from one
// upstream. Adapters hold no per-call state and are safe for concurrent use.
type SourceAdapter interface {
	Source() models.Source
	// MinConfidence is the inclusive threshold a classification of one of
	// this source's items must reach to vote
	MinConfidence() float64
	Fetch(ctx context.Context, symbol string, lookback time.Duration) ([]models.TextItem, error)
}

// normalizeSymbol trims the symbol and rejects an empty one. The ticker is
// not checked against any listing.
func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", apperrors.InvalidInput("empty ticker symbol")
	}
	return symbol, nil
}
