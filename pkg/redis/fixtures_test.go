package redis

import (
	"time"

	"github.com/storefront-labs/storefront/pkg/config"
)

func configFixture(url, addr string) config.RedisConfig {
	return config.RedisConfig{
		URL:          url,
		Address:      addr,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}
