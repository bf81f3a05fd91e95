package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = 24 * time.Hour

// Dedup is a Redis-backed seen-set for webhook deliveries. It only saves
// work: when Redis is unreachable every delivery is treated as new and the
// ledger CAS rejects duplicates anyway.
type Dedup struct {
	client *redis.Client
}

// Connect pings Redis and returns a Dedup, or nil when addr is empty or the
// server is unreachable.
func Connect(addr, password string) *Dedup {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Printf("Redis unreachable at %s, webhook dedup disabled: %v", addr, err)
		return nil
	}

	log.Println("Redis connected")
	return &Dedup{client: client}
}

// Seen reports whether key has already been marked as processed. It never
// writes: a delivery only counts as processed once Mark is called, so a
// notification that could not be applied stays eligible for redelivery.
func (d *Dedup) Seen(ctx context.Context, key string) bool {
	if d == nil {
		return false
	}
	n, err := d.client.Exists(ctx, "webhook:"+key).Result()
	if err != nil {
		log.Printf("Redis dedup check failed for %s: %v", key, err)
		return false
	}
	return n > 0
}

// Mark records key as processed.
func (d *Dedup) Mark(ctx context.Context, key string) {
	if d == nil {
		return
	}
	if err := d.client.Set(ctx, "webhook:"+key, 1, dedupTTL).Err(); err != nil {
		log.Printf("Redis dedup mark failed for %s: %v", key, err)
	}
}
