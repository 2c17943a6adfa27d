package controllers

import "github.com/gofiber/fiber/v2"

// HandleHealth answers the platform health probe.
func HandleHealth(c *fiber.Ctx) error {
	return c.SendString("SivInd backend running")
}
