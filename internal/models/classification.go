package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
)

// Label is one of the two classes the binary classifier emits
type Label string

const (
	LabelPositive Label = "Positive"
	LabelNegative Label = "Negative"
)

// ParseLabel normalises the label names different model heads use. Neutral
// is rejected: the classifier is binary.
func ParseLabel(raw string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "pos", "label_1", "bullish":
		return LabelPositive, nil
	case "negative", "neg", "label_0", "bearish":
		return LabelNegative, nil
	default:
		return "", fmt.Errorf("unexpected classifier label %q", raw)
	}
}

// ClassificationResult is the classifier output for one TextItem
type ClassificationResult struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

func NewClassificationResult(label Label, confidence float64) (ClassificationResult, error) {
	if label != LabelPositive && label != LabelNegative {
		return ClassificationResult{}, apperrors.InvalidInput("label %q is not a classifier class", label)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return ClassificationResult{}, apperrors.InvalidInput("confidence %v outside [0,1]", confidence)
	}
	return ClassificationResult{Label: label, Confidence: confidence}, nil
}
