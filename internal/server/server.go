// Package server builds the adpulse HTTP API: REST resources, the token
// endpoint, and the real-time websocket upgrade.
package server

import (
	"log/slog"

	fiberzap "github.com/gofiber/contrib/v3/zap"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/config"
	"github.com/adpulse/adpulse/internal/logging"
	"github.com/adpulse/adpulse/internal/middleware"
	"github.com/adpulse/adpulse/internal/realtime"
	"github.com/adpulse/adpulse/internal/store"
)

// Server owns the fiber app and its collaborators.
type Server struct {
	app     *fiber.App
	cfg     *config.Config
	store   *store.Store
	hub     *realtime.Hub
	logger  *slog.Logger
	version string
}

// Options collects the server's dependencies. Store and Config are required.
type Options struct {
	Config  *config.Config
	Store   *store.Store
	Hub     *realtime.Hub
	Logger  *slog.Logger
	Zap     *zap.Logger
	Version string
}

// New assembles the app and mounts all routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	if opts.Hub == nil {
		opts.Hub = realtime.NewHub(opts.Logger)
	}

	app := fiber.New(fiber.Config{
		AppName: "adpulse - campaign analytics",
	})

	app.Use(recoverer.New())
	if opts.Zap != nil {
		app.Use(fiberzap.New(fiberzap.Config{Logger: opts.Zap}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	s := &Server{
		app:     app,
		cfg:     opts.Config,
		store:   opts.Store,
		hub:     opts.Hub,
		logger:  opts.Logger,
		version: opts.Version,
	}
	s.mountRoutes()
	return s
}

// App exposes the fiber app for tests and for Listen.
func (s *Server) App() *fiber.App { return s.app }

// Hub exposes the realtime hub so callers can wire the Postgres listener.
func (s *Server) Hub() *realtime.Hub { return s.hub }

// Listen blocks serving the API on the configured port.
func (s *Server) Listen() error {
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) mountRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/api/version", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"version": s.version})
	})

	s.app.Post("/api/auth/refresh", s.handleTokenRefresh)

	// Group middleware in fiber matches by path prefix, so each protected
	// resource gets its own prefix; /api/auth and /api/version stay public.
	secure := func(prefix string) fiber.Router {
		if s.cfg.TokenSecret == "" {
			return s.app.Group("/api" + prefix)
		}
		return s.app.Group("/api"+prefix, middleware.Auth(s.cfg.TokenSecret))
	}

	secure("/real-time").Get("/", s.hub.Handler())

	campaigns := secure("/campaigns")
	campaigns.Get("/", s.handleListCampaigns)
	campaigns.Get("/:id", s.handleGetCampaign)
	campaigns.Post("/", s.handleCreateCampaign)
	campaigns.Put("/:id", s.handleUpdateCampaign)
	campaigns.Delete("/:id", s.handleDeleteCampaign)

	segments := secure("/segments")
	segments.Get("/", s.handleListSegments)
	segments.Get("/:id", s.handleGetSegment)
	segments.Post("/", s.handleCreateSegment)
	segments.Put("/:id", s.handleUpdateSegment)
	segments.Delete("/:id", s.handleDeleteSegment)

	candidates := secure("/candidates")
	candidates.Get("/", s.handleListCandidates)
	candidates.Get("/:id", s.handleGetCandidate)

	openings := secure("/job-openings")
	openings.Get("/", s.handleListJobOpenings)
	openings.Get("/:id", s.handleGetJobOpening)

	notifications := secure("/notifications")
	notifications.Get("/", s.handleListNotifications)
	notifications.Get("/unread-count", s.handleUnreadCount)
	notifications.Post("/", s.handleCreateNotification)
	notifications.Post("/:id/read", s.handleMarkNotificationRead)
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	if err := s.store.DB().PingContext(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "error",
			"error":  "database unreachable",
		})
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.hub.GetClientCount(),
	})
}
