package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mileage-api/pkg/config"
)

func TestNewRedisDisabled(t *testing.T) {
	client, err := NewRedis(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOptionsFromHost(t *testing.T) {
	opts, err := Options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 4, ReadTimeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
}

func TestOptionsURLWins(t *testing.T) {
	opts, err := Options(config.RedisConfig{URL: "redis://:pw@redis.internal:6379/3", Host: "ignored", Port: 1, PoolSize: 8})
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 8, opts.PoolSize)

	_, err = Options(config.RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}
