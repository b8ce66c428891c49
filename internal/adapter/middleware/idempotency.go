package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

// HeaderIdempotencyKey names the client-chosen request key.
const HeaderIdempotencyKey = "Idempotency-Key"

// Idempotency replays the stored response of an earlier request with the
// same Idempotency-Key on the same route. Only 2xx responses are stored, so
// a request that failed can be retried with the same key. When locker is
// set, requests sharing a key run one at a time.
func Idempotency(store ports.IdempotencyStore, locker ports.Locker, log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderIdempotencyKey)
		if key == "" {
			return c.Next()
		}
		scoped := c.Method() + " " + c.Path() + " " + key

		run := func(ctx context.Context) error {
			cached, ok, err := store.Lookup(ctx, scoped)
			if err != nil {
				return err
			}
			if ok {
				log.Info("idempotency hit, returning cached response", zap.String("key", key))
				c.Set("X-Idempotency-Hit", "true")
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				return c.Status(cached.Status).Send(cached.Body)
			}

			if err := c.Next(); err != nil {
				return err
			}

			status := c.Response().StatusCode()
			if status < 200 || status >= 300 {
				return nil
			}
			resp := ports.CachedResponse{
				Status: status,
				Body:   append([]byte(nil), c.Response().Body()...),
			}
			if err := store.Save(ctx, scoped, resp); err != nil {
				log.Error("failed to save idempotency key", zap.Error(err), zap.String("key", key))
			}
			return nil
		}

		if locker == nil {
			return run(c.UserContext())
		}
		return locker.WithLock(c.UserContext(), "lock:idem:"+scoped, run)
	}
}
