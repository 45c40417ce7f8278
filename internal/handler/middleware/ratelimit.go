package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const loginLimiterPrefix = "crm:ratelimit:login"

// NewLoginLimiter builds a limiter from a "<limit>-<period>" rate such as
// "20-M". Counters live in Redis when a client is given, in memory otherwise.
func NewLoginLimiter(formatted string, client *redis.Client) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}

	opts := limiter.StoreOptions{
		Prefix:          loginLimiterPrefix,
		MaxRetry:        limiter.DefaultMaxRetry,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}

	var store limiter.Store
	if client != nil {
		store, err = redisstore.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}

	return limiter.New(store, rate), nil
}

// RateLimit counts requests per client IP and host
func RateLimit(lim *limiter.Limiter, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP() + "|" + c.Hostname()

		ctx, err := lim.Get(c.UserContext(), key)
		if err != nil {
			logger.Error("rate limit check failed", zap.String("key", key), zap.Error(err))
			return abort(c, fiber.StatusInternalServerError, "rate limiter unavailable")
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))

		if ctx.Reached {
			if wait := ctx.Reset - time.Now().Unix(); wait > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(wait, 10))
			}
			return abort(c, fiber.StatusTooManyRequests, "too many requests")
		}

		return c.Next()
	}
}
