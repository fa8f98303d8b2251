package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"

	"github.com/adpulse/adpulse/internal/models"
	"github.com/adpulse/adpulse/internal/realtime"
	"github.com/adpulse/adpulse/internal/wire"
)

type campaignBody struct {
	Name        string                `json:"name"`
	Channel     string                `json:"channel"`
	Status      models.CampaignStatus `json:"status"`
	BudgetCents int64                 `json:"budget_cents"`
}

func (s *Server) handleListCampaigns(c fiber.Ctx) error {
	campaigns, err := s.store.ListCampaigns(c.Context())
	if err != nil {
		s.logger.Error("list campaigns failed", "error", err)
		return storeErr(c, err, "campaigns")
	}
	return ok(c, campaigns)
}

func (s *Server) handleGetCampaign(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid campaign id")
	}
	campaign, err := s.store.GetCampaign(c.Context(), id)
	if err != nil {
		return storeErr(c, err, "campaign")
	}
	return ok(c, campaign)
}

func (s *Server) handleCreateCampaign(c fiber.Ctx) error {
	var body campaignBody
	if err := c.Bind().Body(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid JSON payload")
	}
	if body.Name == "" {
		return fail(c, fiber.StatusBadRequest, "name is required")
	}

	campaign, err := s.store.CreateCampaign(c.Context(), body.Name, body.Channel, body.Status, body.BudgetCents)
	if err != nil {
		s.logger.Error("create campaign failed", "error", err)
		return storeErr(c, err, "campaign")
	}

	s.publishCampaign(c, "campaign_created", campaign)
	return created(c, campaign)
}

func (s *Server) handleUpdateCampaign(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid campaign id")
	}
	var body campaignBody
	if err := c.Bind().Body(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid JSON payload")
	}

	campaign, err := s.store.UpdateCampaign(c.Context(), id, body.Name, body.Channel, body.Status, body.BudgetCents)
	if err != nil {
		return storeErr(c, err, "campaign")
	}

	s.publishCampaign(c, "campaign_updated", campaign)
	return ok(c, campaign)
}

func (s *Server) handleDeleteCampaign(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid campaign id")
	}
	if err := s.store.DeleteCampaign(c.Context(), id); err != nil {
		return storeErr(c, err, "campaign")
	}

	realtime.Publish(c.Context(), s.store, realtime.Event{
		Event:      "campaign_deleted",
		EntityType: wire.EntityCampaign,
		EntityID:   id.String(),
	})
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) publishCampaign(c fiber.Ctx, event string, campaign models.Campaign) {
	payload, err := json.Marshal(campaign)
	if err != nil {
		return
	}
	realtime.Publish(c.Context(), s.store, realtime.Event{
		Event:      event,
		EntityType: wire.EntityCampaign,
		EntityID:   campaign.ID.String(),
		Payload:    payload,
	})
}
