package server

import (
	"github.com/gofiber/fiber/v3"
)

func (s *Server) handleListCandidates(c fiber.Ctx) error {
	candidates, err := s.store.ListCandidates(c.Context())
	if err != nil {
		s.logger.Error("list candidates failed", "error", err)
		return storeErr(c, err, "candidates")
	}
	return ok(c, candidates)
}

func (s *Server) handleGetCandidate(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid candidate id")
	}
	candidate, err := s.store.GetCandidate(c.Context(), id)
	if err != nil {
		return storeErr(c, err, "candidate")
	}
	return ok(c, candidate)
}

func (s *Server) handleListJobOpenings(c fiber.Ctx) error {
	openings, err := s.store.ListJobOpenings(c.Context())
	if err != nil {
		s.logger.Error("list job openings failed", "error", err)
		return storeErr(c, err, "job openings")
	}
	return ok(c, openings)
}

func (s *Server) handleGetJobOpening(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid job opening id")
	}
	opening, err := s.store.GetJobOpening(c.Context(), id)
	if err != nil {
		return storeErr(c, err, "job opening")
	}
	return ok(c, opening)
}
