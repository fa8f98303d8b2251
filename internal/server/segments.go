package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"github.com/adpulse/adpulse/internal/models"
	"github.com/adpulse/adpulse/internal/realtime"
	"github.com/adpulse/adpulse/internal/wire"
)

type segmentBody struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (s *Server) handleListSegments(c fiber.Ctx) error {
	segments, err := s.store.ListSegments(c.Context())
	if err != nil {
		s.logger.Error("list segments failed", "error", err)
		return storeErr(c, err, "segments")
	}
	return ok(c, segments)
}

func (s *Server) handleGetSegment(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid segment id")
	}
	segment, err := s.store.GetSegment(c.Context(), id)
	if err != nil {
		return storeErr(c, err, "segment")
	}
	return ok(c, segment)
}

func (s *Server) handleCreateSegment(c fiber.Ctx) error {
	var body segmentBody
	if err := c.Bind().Body(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid JSON payload")
	}
	if body.Name == "" {
		return fail(c, fiber.StatusBadRequest, "name is required")
	}

	segment, err := s.store.CreateSegment(c.Context(), body.Name, body.Description)
	if err != nil {
		s.logger.Error("create segment failed", "error", err)
		return storeErr(c, err, "segment")
	}

	s.publishSegment(c, "segment_created", segment)
	return created(c, segment)
}

func (s *Server) handleUpdateSegment(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid segment id")
	}
	var body segmentBody
	if err := c.Bind().Body(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid JSON payload")
	}

	segment, err := s.store.UpdateSegment(c.Context(), id, body.Name, body.Description)
	if err != nil {
		return storeErr(c, err, "segment")
	}

	s.publishSegment(c, "segment_updated", segment)
	return ok(c, segment)
}

func (s *Server) handleDeleteSegment(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid segment id")
	}
	if err := s.store.DeleteSegment(c.Context(), id); err != nil {
		return storeErr(c, err, "segment")
	}

	realtime.Publish(c.Context(), s.store, realtime.Event{
		Event:      "segment_deleted",
		EntityType: wire.EntitySegment,
		EntityID:   id.String(),
	})
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) publishSegment(c fiber.Ctx, event string, segment models.Segment) {
	payload, err := json.Marshal(segment)
	if err != nil {
		return
	}
	realtime.Publish(c.Context(), s.store, realtime.Event{
		Event:      event,
		EntityType: wire.EntitySegment,
		EntityID:   segment.ID.String(),
		Payload:    payload,
	})
}
