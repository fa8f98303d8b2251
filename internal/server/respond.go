package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/store"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"status": "success", "data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "data": data})
}

func fail(c fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "error": msg})
}

// storeErr maps store errors onto HTTP statuses.
func storeErr(c fiber.Ctx, err error, resource string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, resource+" not found")
	}
	return fail(c, fiber.StatusInternalServerError, "internal error")
}

func pathID(c fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}
