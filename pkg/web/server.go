// Package web serves the gadget's HTTP API, the dashboard status stream and
// the companion WebSocket link.
package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/gadget"
	"github.com/teslashibe/go-tablebot/pkg/hub"
	"github.com/teslashibe/go-tablebot/pkg/link"
	"github.com/teslashibe/go-tablebot/pkg/metrics"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server is the gadget's web server
type Server struct {
	app  *fiber.App
	addr string

	gadget *gadget.Gadget
	link   *link.Link

	// Hub for dashboard websocket broadcast
	statusHub *hub.Hub

	// ctx is handed to directives received over HTTP.
	ctx context.Context

	unsubscribe func()
}

// NewServer creates the web server for g listening on addr. m may be nil,
// in which case /metrics is not served.
func NewServer(addr string, g *gadget.Gadget, m *metrics.Metrics) *Server {
	s := &Server{
		addr:      addr,
		gadget:    g,
		link:      link.New(g, m),
		statusHub: hub.New("status"),
		ctx:       context.Background(),
	}

	app := fiber.New(fiber.Config{
		AppName:               g.Name(),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool {
			// Health checks and scrapes are noise.
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
	}))
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/directive", s.handleDirective)
	api.Get("/vocabulary", s.handleVocabulary)
	s.link.RegisterAPIRoutes(api)

	app.Get("/healthz", s.handleHealth)
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	// Dashboard stream
	app.Use("/ws/status", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	// Companion link
	s.link.RegisterRoutes(app)

	s.unsubscribe = g.Subscribe(s.onEvent)

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Link returns the companion link.
func (s *Server) Link() *link.Link {
	return s.link
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	go s.statusHub.Run(ctx)

	log.Info("web server listening", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.unsubscribe()
	s.link.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	log.Info("web server stopped")
	return nil
}

// onEvent fans gadget events out to dashboards and companions.
func (s *Server) onEvent(ev protocol.Event) {
	if msg, err := protocol.NewEventMessage(ev); err == nil {
		if out, err := hub.NewProtocolMessage(msg); err == nil {
			s.statusHub.Broadcast(out)
		}
	}
	if msg, err := protocol.NewStatusMessage(s.gadget.Status()); err == nil {
		if out, err := hub.NewProtocolMessage(msg); err == nil {
			s.statusHub.Broadcast(out)
		}
	}
	s.link.Forward(ev)
}
