package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/hireboard/hireboard/internal/pkg/billing"
	"github.com/hireboard/hireboard/internal/pkg/cache"
	"github.com/hireboard/hireboard/internal/pkg/database"
	"github.com/hireboard/hireboard/internal/pkg/env"
	"github.com/hireboard/hireboard/internal/pkg/router"
)

func main() {
	app, svc, appLog := NewApplication()

	go runResetLoop(svc, appLog)

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *billing.Service, zerolog.Logger) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	appLog := newLogger()

	stripeClient := billing.NewClientFromEnv()
	svc := billing.NewServiceFromDB(database.GetDB(), stripeClient, appLog)

	app := fiber.New(fiber.Config{
		AppName: "hireboard",
	})

	// recovery and logging
	app.Use(recover.New(), fiberlogger.New())

	// ROUTER
	router.InstallRouter(app, svc, stripeClient, appLog)

	return app, svc, appLog
}

func newLogger() zerolog.Logger {
	if env.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// runResetLoop runs the monthly quota reset sweep on a fixed interval.
// The sweep itself decides which entitlements are due, so running it more
// often than once a month is harmless.
func runResetLoop(svc *billing.Service, appLog zerolog.Logger) {
	interval, err := time.ParseDuration(env.GetEnv("QUOTA_RESET_INTERVAL", "24h"))
	if err != nil || interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		result, err := svc.ResetDue(ctx, time.Now().UTC())
		cancel()
		if err != nil {
			appLog.Error().Err(err).Msg("scheduled quota reset sweep failed")
			continue
		}
		if result.ResetCount > 0 || len(result.Errors) > 0 {
			appLog.Info().
				Int("reset_count", result.ResetCount).
				Int("total_eligible", result.TotalEligible).
				Int("errors", len(result.Errors)).
				Msg("scheduled quota reset sweep finished")
		}
	}
}
