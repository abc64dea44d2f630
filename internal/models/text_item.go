package models

import (
	"strings"
	"time"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
)

// Source tags where a TextItem came from
type Source string

const (
	SourceSocial Source = "social"
	SourceNews   Source = "news"
)

func (s Source) Valid() bool {
	return s == SourceSocial || s == SourceNews
}

func (s Source) String() string {
	return string(s)
}

// TextItem is a single tweet body or article title. Always built through
// NewTextItem so the text is non-empty and the source is known.
type TextItem struct {
	ID          string    `json:"id,omitempty"`
	Source      Source    `json:"source"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

func NewTextItem(source Source, text, id string, publishedAt time.Time) (TextItem, error) {
	if !source.Valid() {
		return TextItem{}, apperrors.InvalidInput("unknown source %q", source)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return TextItem{}, apperrors.InvalidInput("empty text for %s item %q", source, id)
	}
	return TextItem{
		ID:          id,
		Source:      source,
		Text:        text,
		PublishedAt: publishedAt,
	}, nil
}
