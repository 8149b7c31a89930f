package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/hireboard/hireboard/internal/pkg/billing"
)

func InstallRouter(app *fiber.App, svc *billing.Service, stripe *billing.Client, log zerolog.Logger) {
	setup(app, NewApiRouter(svc, stripe, log))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

type Router interface {
	InstallRouter(app *fiber.App)
}
