package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindowScript counts hits in KEYS[1]; the first hit starts a window of ARGV[1] ms.
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

const redisTimeout = 250 * time.Millisecond

// Redis is a fixed-window limiter. It fails open: when Redis is unreachable
// requests are allowed.
type Redis struct {
	client redis.Scripter
	script *redis.Script
	prefix string
	limit  int
	window time.Duration
	log    *zap.Logger
}

// NewRedis builds a limiter allowing limit hits per window for each key.
func NewRedis(client redis.Scripter, prefix string, limit int, window time.Duration, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		prefix: prefix,
		limit:  limit,
		window: window,
		log:    log,
	}
}

func (l *Redis) Period() time.Duration { return l.window }

// Allow records one hit for key and reports whether it is within the limit.
func (l *Redis) Allow(ctx context.Context, key string) bool {
	if key == "" || l.limit <= 0 || l.window <= 0 {
		return true
	}
	ttl := l.window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	allowed, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, ttl, l.limit).Int64()
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing", zap.Error(err))
		return true
	}
	return allowed == 1
}
