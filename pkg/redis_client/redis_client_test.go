package redis_client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRedisClientAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	assert.Equal(t, "127.0.0.1:6379", GetRedisClient("").Options().Addr)
	assert.Equal(t, "redis:7000", GetRedisClient("redis:7000").Options().Addr)
	t.Setenv("REDIS_ADDR", "cache:6380")
	assert.Equal(t, "cache:6380", GetRedisClient("").Options().Addr)
}
