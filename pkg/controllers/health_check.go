package controllers

import (
	"github.com/callvox/callvox-server/pkg/config"
	"github.com/callvox/callvox-server/version"
	"github.com/gofiber/fiber/v2"
)

type HealthCheckController struct {
	app *config.AppConfig
}

func NewHealthCheckController(app *config.AppConfig) *HealthCheckController {
	return &HealthCheckController{app: app}
}

func (hc *HealthCheckController) HandleHealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).SendString("Healthy")
}

func (hc *HealthCheckController) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version":      version.Version,
		"uptime":       hc.app.Uptime().String(),
		"openChannels": hc.app.CountOpenChannels(),
	})
}
