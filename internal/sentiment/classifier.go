package sentiment

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/models"
)

// ErrNoSentiment is returned by a classifier that found nothing to score in
// a text. The aggregator discards such items instead of counting them.
var ErrNoSentiment = errors.New("text carries no sentiment")

// TextClassifier scores a single snippet. Implementations are pure
// functions of (text, model) and safe for concurrent use.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (models.ClassificationResult, error)
}

// CheckText trims text and rejects it when nothing is left
func CheckText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.InvalidInput("empty text cannot be classified")
	}
	return text, nil
}

// BackendFactory builds a classifier for a backend that lives outside this
// package. The returned close func may be nil.
type BackendFactory func(cfg config.ClassifierConfig) (TextClassifier, func() error, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
)

// RegisterBackend makes a backend available to Initialize. Backends with
// native dependencies register themselves from an init func so only the
// binaries importing them link those libraries.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

func lookupBackend(name string) (BackendFactory, bool) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	factory, ok := backends[name]
	return factory, ok
}
