package sentiment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/models"
)

type batchAnalyzer interface {
	GetBatchedSentimentAnalysis(ctx context.Context, input models.SentimentAnalysisBatchRequest) (models.SentimentAnalysisBatchResponse, error)
}

// RemoteClassifier delegates to the hosted analyzer service
type RemoteClassifier struct {
	analyzer batchAnalyzer
}

func NewRemoteClassifier(analyzer batchAnalyzer) *RemoteClassifier {
	return &RemoteClassifier{analyzer: analyzer}
}

func (r *RemoteClassifier) Classify(ctx context.Context, text string) (models.ClassificationResult, error) {
	text, err := CheckText(text)
	if err != nil {
		return models.ClassificationResult{}, err
	}

	contentID := textKey(text)
	resp, err := r.analyzer.GetBatchedSentimentAnalysis(ctx, models.SentimentAnalysisBatchRequest{
		Posts: []models.SentimentAnalysisRequest{{ContentID: contentID, Text: text}},
	})
	if err != nil {
		return models.ClassificationResult{}, apperrors.NewClassifierError(config.BackendRemote, err)
	}
	if len(resp) != 1 {
		return models.ClassificationResult{}, apperrors.NewClassifierError(config.BackendRemote, fmt.Errorf("expected 1 result, got %d", len(resp)))
	}

	label, err := models.ParseLabel(resp[0].SentimentLabel)
	if err != nil {
		return models.ClassificationResult{}, apperrors.NewClassifierError(config.BackendRemote, err)
	}
	result, err := models.NewClassificationResult(label, math.Abs(resp[0].Confidence))
	if err != nil {
		return models.ClassificationResult{}, apperrors.NewClassifierError(config.BackendRemote, err)
	}
	return result, nil
}

func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
