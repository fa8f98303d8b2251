package server

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/adpulse/adpulse/internal/realtime"
	"github.com/adpulse/adpulse/internal/wire"
)

type notificationBody struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *Server) handleListNotifications(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	notifications, err := s.store.ListNotifications(c.Context(), limit)
	if err != nil {
		s.logger.Error("list notifications failed", "error", err)
		return storeErr(c, err, "notifications")
	}
	return ok(c, notifications)
}

func (s *Server) handleUnreadCount(c fiber.Ctx) error {
	count, err := s.store.UnreadNotificationCount(c.Context())
	if err != nil {
		return storeErr(c, err, "notifications")
	}
	return ok(c, fiber.Map{"unread_count": count})
}

func (s *Server) handleCreateNotification(c fiber.Ctx) error {
	var body notificationBody
	if err := c.Bind().Body(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid JSON payload")
	}
	if body.Title == "" {
		return fail(c, fiber.StatusBadRequest, "title is required")
	}
	if body.Kind == "" {
		body.Kind = "info"
	}

	notification, err := s.store.CreateNotification(c.Context(), body.Kind, body.Title, body.Body)
	if err != nil {
		s.logger.Error("create notification failed", "error", err)
		return storeErr(c, err, "notification")
	}

	if payload, err := json.Marshal(notification); err == nil {
		realtime.Publish(c.Context(), s.store, realtime.Event{
			Event:      "notification_created",
			EntityType: wire.EntityNotification,
			EntityID:   notification.ID.String(),
			Payload:    payload,
		})
	}
	return created(c, notification)
}

func (s *Server) handleMarkNotificationRead(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid notification id")
	}
	if err := s.store.MarkNotificationRead(c.Context(), id); err != nil {
		return storeErr(c, err, "notification")
	}

	payload, _ := json.Marshal(fiber.Map{"id": id.String()})
	realtime.Publish(c.Context(), s.store, realtime.Event{
		Event:      "notification_read",
		EntityType: wire.EntityNotification,
		EntityID:   id.String(),
		Payload:    payload,
	})
	return ok(c, fiber.Map{"id": id.String()})
}
