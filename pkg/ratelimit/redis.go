package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const allowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// Redis is a fixed-window limiter shared across instances. It fails open: if
// Redis is unreachable the request is allowed rather than rejected.
type Redis struct {
	client *redis.Client
	script *redis.Script
}

func NewRedis(client *redis.Client) *Redis {
	if client == nil {
		return nil
	}
	return &Redis{client: client, script: redis.NewScript(allowScript)}
}

func (r *Redis) Allow(key string, limit int, window time.Duration) bool {
	if r == nil || r.client == nil {
		return true
	}
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	allowed, err := r.script.Run(ctx, r.client, []string{key}, ttl, limit).Int64()
	if err != nil {
		return true
	}
	return allowed == 1
}
