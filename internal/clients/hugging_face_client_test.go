package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickerpulse/internal/models"
)

func TestGetBatchedSentimentAnalysis(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req models.SentimentAnalysisBatchRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Posts, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "Apple beats estimates", req.Posts[0].Text)

		_ = json.NewEncoder(w).Encode(models.SentimentAnalysisBatchResponse{
			{ContentID: req.Posts[0].ContentID, SentimentLabel: "positive", Confidence: 0.97},
		})
	}))
	defer srv.Close()

	hf := NewHuggingFaceClient(srv.URL, srv.URL, time.Second)
	hf.InitialBackoff = time.Millisecond

	out, err := hf.GetBatchedSentimentAnalysis(context.Background(), models.SentimentAnalysisBatchRequest{
		Posts: []models.SentimentAnalysisRequest{{ContentID: "a1", Text: "Apple beats estimates"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a1", out[0].ContentID)
	assert.Equal(t, 0.97, out[0].Confidence)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetBatchedSentimentAnalysisClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	hf := NewHuggingFaceClient(srv.URL, srv.URL, time.Second)
	_, err := hf.GetBatchedSentimentAnalysis(context.Background(), models.SentimentAnalysisBatchRequest{})
	assert.Error(t, err)
}

func TestAnalyzerHealthCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	assert.True(t, NewHuggingFaceClient("", healthy.URL, time.Second).AnalyzerHealthCheck(context.Background()))
	assert.False(t, NewHuggingFaceClient("", down.URL, time.Second).AnalyzerHealthCheck(context.Background()))
}
