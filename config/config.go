package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/spacesedan/tickerpulse/internal/apperrors"
)

const (
	BackendHugot  = "hugot"
	BackendRemote = "remote"
	BackendVader  = "vader"
)

const (
	PolicyBestEffort = "best_effort"
	PolicyFailFast   = "fail_fast"
)

type Config struct {
	App         AppConfig
	Credentials CredentialsConfig
	Classifier  ClassifierConfig
	Aggregation AggregationConfig
	News        NewsConfig
	Social      SocialConfig
	Cache       CacheConfig
	Kafka       KafkaConfig
}

type AppConfig struct {
	Name           string        `envconfig:"APP_NAME" default:"tickerpulse"`
	Env            string        `envconfig:"APP_ENV" default:"dev"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	RequestTimeout time.Duration `envconfig:"SENTIMENT_REQUEST_TIMEOUT" default:"20m"`
}

// CredentialsConfig holds the two secrets every process needs, whether or
// not the social source is used for a given request
type CredentialsConfig struct {
	TwitterBearerToken string `envconfig:"TWITTER_BEARER_TOKEN" required:"true"`
	NewsAPIKey         string `envconfig:"NEWS_API_KEY" required:"true"`
}

type ClassifierConfig struct {
	Backend      string        `envconfig:"CLASSIFIER_BACKEND" default:"hugot"`
	ModelPath    string        `envconfig:"CLASSIFIER_MODEL_PATH" default:"./models/finetuned-finbert-2"`
	OnnxFilename string        `envconfig:"CLASSIFIER_ONNX_FILENAME"`
	Endpoint     string        `envconfig:"CLASSIFIER_ENDPOINT" default:"https://spacesedan-sentiment-analyzer.hf.space/analyze_batch"`
	HealthURL    string        `envconfig:"CLASSIFIER_HEALTH_URL" default:"https://spacesedan-sentiment-analyzer.hf.space/health"`
	Timeout      time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"60s"`
}

type AggregationConfig struct {
	NewsMinConfidence   float64       `envconfig:"NEWS_MIN_CONFIDENCE" default:"0.9"`
	SocialMinConfidence float64       `envconfig:"SOCIAL_MIN_CONFIDENCE" default:"0"`
	NewsLookback        time.Duration `envconfig:"NEWS_LOOKBACK" default:"336h"`
	SocialLookback      time.Duration `envconfig:"SOCIAL_LOOKBACK" default:"0s"`
	SourcePolicy        string        `envconfig:"SENTIMENT_SOURCE_POLICY" default:"best_effort"`
}

type NewsConfig struct {
	Endpoint   string `envconfig:"NEWS_API_ENDPOINT" default:"https://newsapi.org/v2/everything"`
	MaxRetries int    `envconfig:"NEWS_API_MAX_RETRIES" default:"5"`
}

type SocialConfig struct {
	Endpoint          string        `envconfig:"TWITTER_SEARCH_ENDPOINT" default:"https://api.twitter.com/2/tweets/search/recent"`
	MaxResults        int           `envconfig:"TWITTER_MAX_RESULTS" default:"10"`
	RequestsPerMinute int           `envconfig:"TWITTER_REQUESTS_PER_MINUTE" default:"30"`
	InitialBackoff    time.Duration `envconfig:"TWITTER_INITIAL_BACKOFF" default:"1s"`
	MaxBackoff        time.Duration `envconfig:"TWITTER_MAX_BACKOFF" default:"32s"`
	MaxRateLimitWait  time.Duration `envconfig:"TWITTER_MAX_RATE_LIMIT_WAIT" default:"15m"`
}

// CacheConfig enables the Valkey classification cache when Address is set
type CacheConfig struct {
	Address  string        `envconfig:"VALKEY_INIT_ADDRESS"`
	Password string        `envconfig:"VALKEY_PASSWORD"`
	TLS      bool          `envconfig:"VALKEY_TLS" default:"false"`
	TTL      time.Duration `envconfig:"CLASSIFICATION_CACHE_TTL" default:"24h"`
}

func (c CacheConfig) Enabled() bool {
	return c.Address != ""
}

type KafkaConfig struct {
	Broker       string `envconfig:"KAFKA_BROKER" default:"localhost:29092"`
	GroupID      string `envconfig:"KAFKA_CONSUMER_GROUP_ID" default:"tickerpulse-sentiment"`
	RequestTopic string `envconfig:"KAFKA_TOPIC_SENTIMENT_REQUEST" default:"sentiment-request"`
	ResultTopic  string `envconfig:"KAFKA_TOPIC_SENTIMENT_RESULTS" default:"sentiment-results"`
}

// legacyKeys maps the credential names used in apis.env onto the current ones
var legacyKeys = map[string]string{
	"bearerToken": "TWITTER_BEARER_TOKEN",
	"newsAPI":     "NEWS_API_KEY",
}

func applyLegacyKeys() {
	for legacy, current := range legacyKeys {
		if _, ok := os.LookupEnv(current); ok {
			continue
		}
		if v, ok := os.LookupEnv(legacy); ok && v != "" {
			os.Setenv(current, v)
		}
	}
}

// Load reads configuration from the environment once at startup. Any
// failure is a ConfigurationError.
func Load() (*Config, error) {
	applyLegacyKeys()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, apperrors.NewConfigurationError("", fmt.Errorf("failed to process env config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Credentials.TwitterBearerToken == "" {
		return apperrors.NewConfigurationError("TWITTER_BEARER_TOKEN", errors.New("missing social bearer token"))
	}
	if c.Credentials.NewsAPIKey == "" {
		return apperrors.NewConfigurationError("NEWS_API_KEY", errors.New("missing news API key"))
	}

	switch c.Classifier.Backend {
	case BackendHugot:
		if c.Classifier.ModelPath == "" {
			return apperrors.NewConfigurationError("CLASSIFIER_MODEL_PATH", errors.New("model path is required for the hugot backend"))
		}
	case BackendRemote:
		if c.Classifier.Endpoint == "" {
			return apperrors.NewConfigurationError("CLASSIFIER_ENDPOINT", errors.New("endpoint is required for the remote backend"))
		}
	case BackendVader:
	default:
		return apperrors.NewConfigurationError("CLASSIFIER_BACKEND", fmt.Errorf("unknown backend %q", c.Classifier.Backend))
	}

	if !inUnitInterval(c.Aggregation.NewsMinConfidence) {
		return apperrors.NewConfigurationError("NEWS_MIN_CONFIDENCE", fmt.Errorf("%v outside [0,1]", c.Aggregation.NewsMinConfidence))
	}
	if !inUnitInterval(c.Aggregation.SocialMinConfidence) {
		return apperrors.NewConfigurationError("SOCIAL_MIN_CONFIDENCE", fmt.Errorf("%v outside [0,1]", c.Aggregation.SocialMinConfidence))
	}
	if c.Aggregation.NewsLookback <= 0 {
		return apperrors.NewConfigurationError("NEWS_LOOKBACK", errors.New("lookback must be positive"))
	}

	switch c.Aggregation.SourcePolicy {
	case PolicyBestEffort, PolicyFailFast:
	default:
		return apperrors.NewConfigurationError("SENTIMENT_SOURCE_POLICY", fmt.Errorf("unknown policy %q", c.Aggregation.SourcePolicy))
	}

	if c.Social.MaxRateLimitWait < 0 || c.Social.InitialBackoff <= 0 || c.Social.MaxBackoff < c.Social.InitialBackoff {
		return apperrors.NewConfigurationError("TWITTER_*_BACKOFF", errors.New("backoff settings must be positive and max >= initial"))
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
