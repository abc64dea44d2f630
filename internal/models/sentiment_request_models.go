package models

import "time"

// SentimentRequest is consumed from the sentiment-request topic
type SentimentRequest struct {
	RequestID string `json:"request_id"`
	Symbol    string `json:"symbol"`
	UseSocial bool   `json:"use_social"`
}

// SentimentResult is published to the sentiment-results topic, one per request
type SentimentResult struct {
	RequestID     string    `json:"request_id"`
	Symbol        string    `json:"symbol"`
	UseSocial     bool      `json:"use_social"`
	Verdict       Verdict   `json:"verdict,omitempty"`
	Positive      int       `json:"positive"`
	Negative      int       `json:"negative"`
	Filtered      int       `json:"filtered"`
	FailedSources []Source  `json:"failed_sources,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}
