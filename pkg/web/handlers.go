package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/command"
	"github.com/teslashibe/go-tablebot/pkg/gadget"
	"github.com/teslashibe/go-tablebot/pkg/hub"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

// Vocabulary describes what the control payload accepts
type Vocabulary struct {
	Types      []command.Type      `json:"types"`
	Directions map[string][]string `json:"directions"`
	Condiments []command.Condiment `json:"condiments"`
}

func vocabulary() Vocabulary {
	v := Vocabulary{
		Types:      []command.Type{command.TypeMove, command.TypeDeliver},
		Directions: make(map[string][]string),
		Condiments: command.Condiments(),
	}
	for _, d := range command.Directions() {
		v.Directions[d.String()] = d.Synonyms()
	}
	return v
}

// handleStatus returns the gadget's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.gadget.Status())
}

// handleVocabulary lists accepted types, direction tokens and condiments
func (s *Server) handleVocabulary(c *fiber.Ctx) error {
	return c.JSON(vocabulary())
}

// daemonCheckTimeout bounds the daemon status check behind /healthz.
const daemonCheckTimeout = time.Second

// handleHealth reports liveness. Backends driven through a daemon also
// report the daemon's state; an unreachable daemon degrades the check.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), daemonCheckTimeout)
	defer cancel()

	state, err := s.gadget.DaemonStatus(ctx)
	switch {
	case errors.Is(err, gadget.ErrNoDaemon):
		return c.JSON(fiber.Map{"status": "ok"})
	case err != nil:
		log.Warn("daemon status check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"daemon": "unreachable",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "daemon": state})
}

// handleDirective runs a directive and responds once the gadget is done.
// The body is either a full directive ({"header":..,"payload":..}) or a
// bare control payload.
func (s *Server) handleDirective(c *fiber.Ctx) error {
	d, err := protocol.DecodeDirective(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	err = s.gadget.HandleDirective(s.ctx, d)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     err.Error(),
			"directive": d.Header.MessageID,
		})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     err.Error(),
			"directive": d.Header.MessageID,
		})
	}

	return c.JSON(fiber.Map{
		"status":    "handled",
		"directive": d.Header.MessageID,
		"state":     s.gadget.State(),
	})
}

// handleStatusWS streams events and status snapshots to a dashboard
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		return
	}

	if msg, err := protocol.NewStatusMessage(s.gadget.Status()); err == nil {
		if out, err := hub.NewProtocolMessage(msg); err == nil {
			client.Send(out)
		}
	}

	log.Debug("dashboard connected", "addr", c.RemoteAddr().String())
	client.Run()
}
