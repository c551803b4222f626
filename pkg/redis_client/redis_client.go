package redis_client

import (
	"os"

	"github.com/go-redis/redis/v9"
)

// GetRedisClient connects to addr, or to REDIS_ADDR when addr is empty.
func GetRedisClient(addr string) *redis.Client {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})
}
