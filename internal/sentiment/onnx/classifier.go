// Package onnx runs a fine-tuned sequence classification model through
// hugot and ONNX Runtime. Importing it registers the hugot backend.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/models"
	"github.com/spacesedan/tickerpulse/internal/sentiment"
)

func init() {
	sentiment.RegisterBackend(config.BackendHugot, func(cfg config.ClassifierConfig) (sentiment.TextClassifier, func() error, error) {
		hc, err := NewHugotClassifier(cfg.ModelPath, cfg.OnnxFilename)
		if err != nil {
			return nil, nil, err
		}
		return hc, hc.Close, nil
	})
}

// HugotClassifier loads the model from a local directory holding the ONNX
// export and its tokenizer.
type HugotClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline

	// the pipeline is not documented as reentrant
	mu sync.Mutex
}

func NewHugotClassifier(modelPath, onnxFilename string) (*HugotClassifier, error) {
	info, err := os.Stat(modelPath)
	if err != nil {
		return nil, apperrors.NewConfigurationError("CLASSIFIER_MODEL_PATH", fmt.Errorf("model directory %s: %w", modelPath, err))
	}
	if !info.IsDir() {
		return nil, apperrors.NewConfigurationError("CLASSIFIER_MODEL_PATH", fmt.Errorf("%s is not a directory", modelPath))
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, apperrors.NewConfigurationError("CLASSIFIER_BACKEND", fmt.Errorf("failed to initialize hugot session: %w", err))
	}

	cfg := hugot.TextClassificationConfig{
		ModelPath:    modelPath,
		Name:         "tickerSentimentPipeline",
		OnnxFilename: onnxFilename,
	}
	pipeline, err := hugot.NewPipeline(session, cfg)
	if err != nil {
		_ = session.Destroy()
		return nil, apperrors.NewConfigurationError("CLASSIFIER_MODEL_PATH", fmt.Errorf("failed to load classification pipeline: %w", err))
	}

	slog.Info("[HugotClassifier] Model loaded", slog.String("path", modelPath))
	return &HugotClassifier{session: session, pipeline: pipeline}, nil
}

func (h *HugotClassifier) Classify(ctx context.Context, text string) (models.ClassificationResult, error) {
	text, err := sentiment.CheckText(text)
	if err != nil {
		return models.ClassificationResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.ClassificationResult{}, err
	}

	h.mu.Lock()
	output, err := h.pipeline.RunPipeline([]string{text})
	h.mu.Unlock()
	if err != nil {
		return models.ClassificationResult{}, apperrors.NewClassifierError(config.BackendHugot, err)
	}
	if len(output.ClassificationOutputs) == 0 || len(output.ClassificationOutputs[0]) == 0 {
		return models.ClassificationResult{}, apperrors.NewClassifierError(config.BackendHugot, errors.New("empty pipeline output"))
	}

	top := output.ClassificationOutputs[0][0]
	for _, candidate := range output.ClassificationOutputs[0][1:] {
		if candidate.Score > top.Score {
			top = candidate
		}
	}

	label, err := models.ParseLabel(top.Label)
	if err != nil {
		return models.ClassificationResult{}, apperrors.NewClassifierError(config.BackendHugot, err)
	}
	result, err := models.NewClassificationResult(label, float64(top.Score))
	if err != nil {
		return models.ClassificationResult{}, apperrors.NewClassifierError(config.BackendHugot, err)
	}
	return result, nil
}

func (h *HugotClassifier) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Destroy()
}
