// Package link provides the WebSocket endpoint companions use to control the
// gadget.
//
// The first companion to connect marks the gadget connected and the last one
// to leave marks it disconnected. Directives from any companion are handed to
// the gadget, which runs them one at a time; gadget events are forwarded to
// every companion.
package link

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/metrics"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

// Gadget is the part of the gadget the link drives.
type Gadget interface {
	OnConnected(addr string)
	OnDisconnected(addr string)
	HandleDirective(ctx context.Context, d *protocol.Directive) error
	Status() protocol.StatusData
}

// writeWait bounds a single write so a stalled companion cannot hold up
// its own queue.
const writeWait = 5 * time.Second

// sendBuffer bounds the messages queued for one companion.
const sendBuffer = 64

// Companion represents a connected companion device. Its connection is
// owned by the handler goroutine; everyone else talks to it through Send
// and Close.
type Companion struct {
	ID        string
	Addr      string
	Connected time.Time
	LastSeen  time.Time

	conn      *websocket.Conn
	send      chan *protocol.Message
	closing   chan struct{}
	closeOnce sync.Once

	mu sync.Mutex
}

func newCompanion(id string, conn *websocket.Conn) *Companion {
	now := time.Now()
	return &Companion{
		ID:        id,
		Addr:      conn.RemoteAddr().String(),
		Connected: now,
		LastSeen:  now,
		conn:      conn,
		send:      make(chan *protocol.Message, sendBuffer),
		closing:   make(chan struct{}),
	}
}

// Send queues a message for the companion. It never blocks and reports
// false once the companion is closing or when its queue is full.
func (c *Companion) Send(msg *protocol.Message) bool {
	select {
	case <-c.closing:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close asks the companion's handler to close the connection. It is safe
// to call more than once and after the handler has returned.
func (c *Companion) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// writePump is the only writer on the connection. It closes the
// connection when it exits so the read loop ends as well.
func (c *Companion) writePump() {
	defer c.conn.Close()

	for {
		select {
		case msg := <-c.send:
			data, err := msg.Bytes()
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("companion write ended", "id", c.ID, "error", err)
				return
			}

		case <-c.closing:
			c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Companion) touch() {
	c.mu.Lock()
	c.LastSeen = time.Now()
	c.mu.Unlock()
}

// Link manages WebSocket connections from companions
type Link struct {
	gadget  Gadget
	metrics *metrics.Metrics

	mu         sync.RWMutex
	companions map[string]*Companion

	// ctx is handed to directives and cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	// Stats
	messagesReceived   atomic.Uint64
	messagesSent       atomic.Uint64
	directivesReceived atomic.Uint64
}

// New creates a companion link for g. m may be nil.
func New(g Gadget, m *metrics.Metrics) *Link {
	ctx, cancel := context.WithCancel(context.Background())
	return &Link{
		gadget:     g,
		metrics:    m,
		companions: make(map[string]*Companion),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterRoutes registers WebSocket routes on a Fiber router
func (l *Link) RegisterRoutes(r fiber.Router) {
	// WebSocket upgrade middleware
	r.Use("/ws/companion", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Companion connection endpoint
	r.Get("/ws/companion", websocket.New(l.handleCompanion))
	r.Get("/ws/companion/:id", websocket.New(l.handleCompanion))
}

// handleCompanion handles a companion WebSocket connection. The connection
// is returned to fiber's pool when this function returns, so it waits for
// the companion's writer before doing so.
func (l *Link) handleCompanion(c *websocket.Conn) {
	if l.ctx.Err() != nil {
		return
	}

	// Get companion ID from path or generate one
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	companion := newCompanion(id, c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		companion.writePump()
	}()

	first, replaced := l.add(companion)
	if replaced != nil {
		log.Info("companion reconnected, closing previous connection", "id", id)
		replaced.Close()
	}
	if first {
		l.gadget.OnConnected(companion.Addr)
	}

	defer func() {
		last := l.remove(companion)
		companion.Close()
		<-writerDone
		if last {
			l.gadget.OnDisconnected(companion.Addr)
		}
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("companion read ended", "id", id, "error", err)
			return
		}

		companion.touch()
		l.messagesReceived.Add(1)
		l.handleMessage(companion, data)
	}
}

// add registers a companion. It reports whether it is the only one and
// returns any connection it replaced.
func (l *Link) add(c *Companion) (first bool, replaced *Companion) {
	l.mu.Lock()
	replaced = l.companions[c.ID]
	l.companions[c.ID] = c
	count := len(l.companions)
	l.mu.Unlock()

	l.metrics.SetCompanions(count)
	log.Info("companion connected", "id", c.ID, "addr", c.Addr, "total", count)
	return count == 1 && replaced == nil, replaced
}

// remove unregisters a companion and reports whether none remain.
func (l *Link) remove(c *Companion) (last bool) {
	l.mu.Lock()
	if cur, ok := l.companions[c.ID]; ok && cur == c {
		delete(l.companions, c.ID)
		last = len(l.companions) == 0
	}
	count := len(l.companions)
	l.mu.Unlock()

	l.metrics.SetCompanions(count)
	log.Info("companion disconnected", "id", c.ID, "total", count)
	return last
}

// handleMessage processes an incoming message from a companion
func (l *Link) handleMessage(c *Companion, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("companion message parse error", "id", c.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeDirective:
		l.directivesReceived.Add(1)
		d, err := msg.GetDirective()
		if err != nil {
			log.Warn("companion directive decode error", "id", c.ID, "error", err)
			return
		}
		// Errors are logged by the gadget and reported through its events.
		l.gadget.HandleDirective(l.ctx, d)

	case protocol.TypeStatus:
		reply, err := protocol.NewStatusMessage(l.gadget.Status())
		if err == nil {
			l.send(c, reply)
		}

	case protocol.TypePing:
		ping, _ := msg.GetPingData()
		id := ""
		if ping != nil {
			id = ping.ID
		}
		reply, err := protocol.NewPongMessage(id, msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			l.send(c, reply)
		}

	default:
		log.Debug("ignoring companion message", "id", c.ID, "type", msg.Type)
	}
}

func (l *Link) send(c *Companion, msg *protocol.Message) {
	if !c.Send(msg) {
		log.Warn("companion closing or queue full, dropping message", "id", c.ID, "type", msg.Type)
		return
	}
	l.messagesSent.Add(1)
}

// Broadcast sends a message to all connected companions
func (l *Link) Broadcast(msg *protocol.Message) {
	for _, c := range l.Companions() {
		l.send(c, msg)
	}
}

// Forward broadcasts a gadget event. It is meant to be registered as a
// gadget listener and never blocks on a companion's connection.
func (l *Link) Forward(ev protocol.Event) {
	if l.CompanionCount() == 0 {
		return
	}
	msg, err := protocol.NewEventMessage(ev)
	if err != nil {
		log.Warn("encode event", "error", err)
		return
	}
	l.Broadcast(msg)
}

// Close cancels in-flight directive pauses, refuses new companions and
// asks every connected companion to disconnect.
func (l *Link) Close() {
	l.cancel()
	for _, c := range l.Companions() {
		c.Close()
	}
}

// GetCompanion returns a companion connection by ID
func (l *Link) GetCompanion(id string) *Companion {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.companions[id]
}

// Companions returns all connected companions
func (l *Link) Companions() []*Companion {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Companion, 0, len(l.companions))
	for _, c := range l.companions {
		out = append(out, c)
	}
	return out
}

// CompanionCount returns the number of connected companions
func (l *Link) CompanionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.companions)
}

// Stats contains link statistics
type Stats struct {
	CompanionCount     int    `json:"companion_count"`
	MessagesReceived   uint64 `json:"messages_received"`
	MessagesSent       uint64 `json:"messages_sent"`
	DirectivesReceived uint64 `json:"directives_received"`
}

// GetStats returns link statistics
func (l *Link) GetStats() Stats {
	return Stats{
		CompanionCount:     l.CompanionCount(),
		MessagesReceived:   l.messagesReceived.Load(),
		MessagesSent:       l.messagesSent.Load(),
		DirectivesReceived: l.directivesReceived.Load(),
	}
}

// CompanionInfo contains info about a connected companion
type CompanionInfo struct {
	ID        string    `json:"id"`
	Addr      string    `json:"addr"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetCompanionInfos returns info about all connected companions
func (l *Link) GetCompanionInfos() []CompanionInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	infos := make([]CompanionInfo, 0, len(l.companions))
	for _, c := range l.companions {
		c.mu.Lock()
		infos = append(infos, CompanionInfo{
			ID:        c.ID,
			Addr:      c.Addr,
			Connected: c.Connected,
			LastSeen:  c.LastSeen,
		})
		c.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for companion management
func (l *Link) RegisterAPIRoutes(api fiber.Router) {
	companions := api.Group("/companions")

	// List connected companions
	companions.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"companions": l.GetCompanionInfos(),
			"count":      l.CompanionCount(),
		})
	})

	// Get link stats
	companions.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(l.GetStats())
	})
}
