package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/rs/zerolog"

	apiv1 "github.com/hireboard/hireboard/internal/api/v1"
	"github.com/hireboard/hireboard/internal/pkg/billing"
	"github.com/hireboard/hireboard/internal/pkg/cache"
	"github.com/hireboard/hireboard/internal/pkg/constants"
	"github.com/hireboard/hireboard/internal/pkg/env"
)

type ApiRouter struct {
	svc    *billing.Service
	stripe *billing.Client
	log    zerolog.Logger
}

func NewApiRouter(svc *billing.Service, stripe *billing.Client, log zerolog.Logger) *ApiRouter {
	return &ApiRouter{svc: svc, stripe: stripe, log: log}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    limiterStorage(),
		// Webhook deliveries come in bursts from a small set of provider
		// IPs; rate limiting them causes redelivery storms.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == constants.StripeWebhookRoute
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group(constants.APIv1Route)
	apiServer := apiv1.NewAPIServer(h.svc, h.stripe, h.log)
	apiv1.RegisterHandlers(v1, apiServer)
}

// limiterStorage shares rate limit counters across instances via Redis,
// using database 1 (cache uses DB 0). Falls back to in-memory counters
// when the cache is not up.
func limiterStorage() fiber.Storage {
	cacheClient := cache.GetClient()
	if cacheClient == nil {
		return nil
	}

	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	addr := cacheClient.Options().Addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	if p := cacheClient.Options().Password; p != "" {
		password = p
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
