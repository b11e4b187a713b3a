package apl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisAPL stores auth records in Redis under the same composite key scheme
// as the REST backend, for deployments that talk to Redis directly instead
// of through the REST proxy.
type RedisAPL struct {
	client    *redis.Client
	namespace string
}

func NewRedisAPL(client *redis.Client, namespace string) *RedisAPL {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &RedisAPL{client: client, namespace: namespace}
}

func (r *RedisAPL) key(saleorAPIURL string) string {
	return saleorAPIURL + "@" + r.namespace
}

func (r *RedisAPL) Get(ctx context.Context, saleorAPIURL string) (*AuthData, error) {
	if r.client == nil {
		return nil, &NotConfiguredError{Missing: []string{"redisURL"}}
	}
	key := r.key(saleorAPIURL)
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &TransportError{Op: "get", Err: err}
	}
	var data AuthData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, &CorruptionError{Key: key, Err: err}
	}
	return &data, nil
}

func (r *RedisAPL) Set(ctx context.Context, data AuthData) error {
	if r.client == nil {
		return &NotConfiguredError{Missing: []string{"redisURL"}}
	}
	value, err := json.Marshal(data)
	if err != nil {
		return &CorruptionError{Key: r.key(data.SaleorAPIURL), Err: err}
	}
	if err := r.client.Set(ctx, r.key(data.SaleorAPIURL), value, 0).Err(); err != nil {
		return &TransportError{Op: "set", Err: err}
	}
	return nil
}

func (r *RedisAPL) Delete(ctx context.Context, saleorAPIURL string) error {
	if r.client == nil {
		return &NotConfiguredError{Missing: []string{"redisURL"}}
	}
	if err := r.client.Del(ctx, r.key(saleorAPIURL)).Err(); err != nil {
		return &TransportError{Op: "delete", Err: err}
	}
	return nil
}

// GetAll scans the namespace suffix. The scan is bounded by the app
// namespace so unrelated keys in a shared instance are never touched.
func (r *RedisAPL) GetAll(ctx context.Context) ([]AuthData, error) {
	if r.client == nil {
		return nil, &NotConfiguredError{Missing: []string{"redisURL"}}
	}
	var out []AuthData
	iter := r.client.Scan(ctx, 0, "*@"+r.namespace, 0).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // deleted between scan and get
		}
		if err != nil {
			return nil, &TransportError{Op: "getAll", Err: err}
		}
		var data AuthData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, &CorruptionError{Key: iter.Val(), Err: err}
		}
		out = append(out, data)
	}
	if err := iter.Err(); err != nil {
		return nil, &TransportError{Op: "getAll", Err: err}
	}
	return out, nil
}

func (r *RedisAPL) IsReady(ctx context.Context) ReadyResult {
	if r.client == nil {
		return ReadyResult{Ready: false, Missing: []string{"redisURL"}}
	}
	return ReadyResult{Ready: true}
}

func (r *RedisAPL) IsConfigured(ctx context.Context) ConfiguredResult {
	if r.client == nil {
		return ConfiguredResult{Configured: false, Err: fmt.Errorf("redis APL: %w", &NotConfiguredError{Missing: []string{"redisURL"}})}
	}
	return ConfiguredResult{Configured: true}
}
