package kafka_client

import "time"

const (
	KAFKA_TOPIC_SENTIMENT_REQUEST = "sentiment-request" // ticker symbols waiting for a verdict
	KAFKA_TOPIC_SENTIMENT_RESULTS = "sentiment-results" // one verdict envelope per request
)

const (
	MAX_RETRIES  = 5
	RETRY_DELAY  = 2 * time.Second
	POLL_TIMEOUT = time.Second
	FLUSH_MS     = 5000
)
