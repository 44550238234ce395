package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-catalog-service/internal/domain"
)

const productListKey = "catalog:products"

// ProductCache keeps the unfiltered product list in Redis so the storefront
// landing page does not hit PostgreSQL on every request. The catalog is the
// only writer, so invalidation on every mutation keeps it consistent.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache connects to Redis and verifies the connection with a ping.
func NewProductCache(addr, password string, ttl time.Duration) (*ProductCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to Redis: %w", err)
	}
	log.Println("INFO: Successfully connected to Redis.")

	return &ProductCache{client: client, ttl: ttl}, nil
}

// GetProductList returns the cached list, or redis.Nil-wrapped error on miss.
func (c *ProductCache) GetProductList(ctx context.Context) ([]domain.Product, error) {
	raw, err := c.client.Get(ctx, productListKey).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: failed to get product list: %w", err)
	}
	var products []domain.Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, fmt.Errorf("cache: failed to unmarshal product list: %w", err)
	}
	return products, nil
}

// SetProductList stores the list with the configured TTL.
func (c *ProductCache) SetProductList(ctx context.Context, products []domain.Product) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal product list: %w", err)
	}
	if err := c.client.Set(ctx, productListKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: failed to set product list: %w", err)
	}
	return nil
}

// Invalidate drops the cached list after any catalog mutation.
func (c *ProductCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, productListKey).Err(); err != nil {
		return fmt.Errorf("cache: failed to invalidate product list: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *ProductCache) Close() {
	if c.client != nil {
		c.client.Close()
		log.Println("INFO: Redis connection closed.")
	}
}
