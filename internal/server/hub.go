package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arkdrop/internal/metrics"
)

const (
	defaultRoom  = "default"
	writeTimeout = 10 * time.Second
)

// Hub relays websocket messages between clients in the same room.
// A client connected with echo=false never receives its own messages.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[*hubClient]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type hubClient struct {
	conn *websocket.Conn
	room string
	echo bool

	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*hubClient]struct{}),
		logger: logger.With("component", "hub"),
	}
}

// ServeHTTP upgrades the request and relays until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	room := strings.TrimSpace(query.Get("channel"))
	if room == "" {
		room = defaultRoom
	}
	echo, _ := strconv.ParseBool(query.Get("echo"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{conn: conn, room: room, echo: echo}
	h.add(client)
	defer func() {
		h.remove(client)
		_ = conn.Close()
	}()
	h.logger.Debug("client joined", "room", room, "echo", echo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("client left", "room", room, "error", err)
			return
		}
		h.broadcast(room, msgType, msg, client)
	}
}

// BroadcastAll sends a text message to every connected client.
func (h *Hub) BroadcastAll(msg []byte) {
	h.mu.Lock()
	rooms := make([]string, 0, len(h.rooms))
	for room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()

	for _, room := range rooms {
		h.broadcast(room, websocket.TextMessage, msg, nil)
	}
}

// Clients returns the number of clients in room.
func (h *Hub) Clients(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	var clients []*hubClient
	for _, members := range h.rooms {
		for c := range members {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	}
}

func (h *Hub) broadcast(room string, msgType int, msg []byte, sender *hubClient) {
	h.mu.Lock()
	targets := make([]*hubClient, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c == sender && !c.echo {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	metrics.RecordBroadcast()
	for _, c := range targets {
		if err := c.write(msgType, msg); err != nil {
			h.logger.Warn("websocket send failed", "room", room, "error", err)
			h.remove(c)
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) add(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[*hubClient]struct{})
		h.rooms[c.room] = members
	}
	members[c] = struct{}{}
	metrics.AddWSClients(1)
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, found := members[c]; !found {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, c.room)
	}
	metrics.AddWSClients(-1)
}

func (c *hubClient) write(msgType int, msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(msgType, msg)
}
