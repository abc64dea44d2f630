package sentiment

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"

	"github.com/spacesedan/tickerpulse/internal/models"
)

var (
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern          = regexp.MustCompile(`https?://\S+|www\.\S+`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
)

func RemoveLinks(input string) string {
	input = markdownLinkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plainText := htmlTagPattern.ReplaceAllString(string(output), " ")
	plainText = strings.Join(strings.Fields(plainText), " ")

	return RemoveLinks(plainText)
}

// VaderClassifier is the lexicon fallback. It needs no model files, which
// makes it the backend for offline runs and tests.
type VaderClassifier struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderClassifier() *VaderClassifier {
	return &VaderClassifier{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Classify maps the compound score onto the binary classes: a positive
// compound is Positive and its magnitude is the confidence. Text without a
// single lexicon hit scores exactly zero and yields ErrNoSentiment.
func (v *VaderClassifier) Classify(_ context.Context, text string) (models.ClassificationResult, error) {
	text, err := CheckText(text)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	score := v.analyzer.PolarityScores(ConvertMarkdownToText(text)).Compound
	if score == 0 {
		return models.ClassificationResult{}, ErrNoSentiment
	}

	label := models.LabelPositive
	if score < 0 {
		label = models.LabelNegative
	}
	return models.NewClassificationResult(label, math.Min(math.Abs(score), 1))
}
