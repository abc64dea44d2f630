package clients

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/models"
)

const VALKEY_CLASSIFICATION_PREFIX = "sentiment:classification:"

type ValkeyClient struct {
	Client valkey.Client
	cfg    config.CacheConfig
	mu     sync.RWMutex
}

func NewValkeyClient(ctx context.Context, cfg config.CacheConfig) (*ValkeyClient, error) {
	client, err := dialValkey(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", cfg.Address))
	return &ValkeyClient{Client: client, cfg: cfg}, nil
}

func dialValkey(ctx context.Context, cfg config.CacheConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.Address},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.Client
}

func (vc *ValkeyClient) recreateClient(ctx context.Context) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := dialValkey(ctx, vc.cfg)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

// GetClassification returns a cached result for key. found is false on a
// miss or when the cache is unreachable.
func (vc *ValkeyClient) GetClassification(ctx context.Context, key string) (models.ClassificationResult, bool) {
	var out models.ClassificationResult

	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Get().Key(VALKEY_CLASSIFICATION_PREFIX + key).Build()
	}, 3)
	if err := res.Error(); err != nil {
		if !valkey.IsValkeyNil(err) {
			slog.Warn("[ValkeyClient] Cache lookup failed", slog.String("error", err.Error()))
		}
		return out, false
	}

	raw, err := res.AsBytes()
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("[ValkeyClient] Discarding malformed cache entry", slog.String("key", key))
		return out, false
	}
	return out, true
}

func (vc *ValkeyClient) SetClassification(ctx context.Context, key string, result models.ClassificationResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}

	ttl := int64(vc.cfg.TTL / time.Second)
	return vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		cmd := c.B().Set().Key(VALKEY_CLASSIFICATION_PREFIX + key).Value(string(raw))
		if ttl > 0 {
			return cmd.ExSeconds(ttl).Build()
		}
		return cmd.Build()
	}, 3).Error()
}

// DoWithRetry rebuilds the command per attempt since a completed command
// is recycled once it has been sent
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, build func(valkey.Client) valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		c := vc.client()
		result = c.Do(ctx, build(c))
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		if isConnectionError(err) {
			vc.recreateClient(ctx)
		}
		if sleepCtx(ctx, 250*time.Millisecond) != nil {
			break
		}
	}

	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
