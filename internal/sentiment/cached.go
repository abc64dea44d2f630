package sentiment

import (
	"context"
	"log/slog"

	"github.com/spacesedan/tickerpulse/internal/models"
)

// ClassificationCache is satisfied by clients.ValkeyClient
type ClassificationCache interface {
	GetClassification(ctx context.Context, key string) (models.ClassificationResult, bool)
	SetClassification(ctx context.Context, key string, result models.ClassificationResult) error
}

// CachedClassifier memoises another classifier. Results only depend on the
// text and the backend, so a hit is indistinguishable from a fresh call.
type CachedClassifier struct {
	next    TextClassifier
	cache   ClassificationCache
	backend string
}

func NewCachedClassifier(next TextClassifier, cache ClassificationCache, backend string) *CachedClassifier {
	return &CachedClassifier{next: next, cache: cache, backend: backend}
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) (models.ClassificationResult, error) {
	text, err := CheckText(text)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	key := c.backend + ":" + textKey(text)
	if cached, ok := c.cache.GetClassification(ctx, key); ok {
		if _, err := models.NewClassificationResult(cached.Label, cached.Confidence); err == nil {
			return cached, nil
		}
	}

	result, err := c.next.Classify(ctx, text)
	if err != nil {
		return result, err
	}

	if err := c.cache.SetClassification(ctx, key, result); err != nil {
		slog.Warn("[CachedClassifier] Failed to store classification", slog.String("error", err.Error()))
	}
	return result, nil
}
