package store

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"booking_service/domain"
)

type BookingRedisCache struct {
	client *redis.Client
	logger *log.Logger
	tracer trace.Tracer
}

func NewBookingRedisCache(client *redis.Client, logger *log.Logger, tracer trace.Tracer) domain.BookingCache {
	return &BookingRedisCache{
		client: client,
		logger: logger,
		tracer: tracer,
	}
}

func (cache *BookingRedisCache) Invalidate(ctx context.Context, key string) error {
	_, span := cache.tracer.Start(ctx, "BookingRedisCache.Invalidate")
	defer span.End()

	if err := cache.client.Del(key).Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		cache.logger.Printf("redis del error: %s", err)
		return err
	}
	return nil
}

// InvalidatePattern walks a SCAN cursor over the glob and deletes every
// match. Staleness between a mutation and this call is accepted.
func (cache *BookingRedisCache) InvalidatePattern(ctx context.Context, pattern string) error {
	_, span := cache.tracer.Start(ctx, "BookingRedisCache.InvalidatePattern")
	defer span.End()

	var cursor uint64
	for {
		keys, next, err := cache.client.Scan(cursor, pattern, 100).Result()
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			cache.logger.Printf("redis scan error: %s", err)
			return err
		}
		if len(keys) > 0 {
			if err := cache.client.Del(keys...).Err(); err != nil {
				span.SetStatus(codes.Error, err.Error())
				cache.logger.Printf("redis del error: %s", err)
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// GetOrCompute returns the cached bytes for key or computes, stores and
// returns them. A redis failure degrades to calling compute directly.
func (cache *BookingRedisCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	_, span := cache.tracer.Start(ctx, "BookingRedisCache.GetOrCompute")
	defer span.End()

	value, err := cache.client.Get(key).Bytes()
	if err == nil {
		return value, nil
	}
	if err != redis.Nil {
		cache.logger.Printf("redis get error: %s", err)
	}

	value, err = compute()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := cache.client.Set(key, value, ttl).Err(); err != nil {
		cache.logger.Printf("redis set error: %s", err)
	}
	return value, nil
}
