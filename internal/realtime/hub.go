package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"artizen/internal/logging"
	"artizen/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 32
)

// JoinAuthorizer reports whether email may join the room of threadID.
type JoinAuthorizer func(ctx context.Context, threadID, email string) (bool, error)

// Bridge forwards envelopes to other server instances.
type Bridge interface {
	Publish(env Envelope) error
}

// Observer receives connection lifecycle callbacks, typically metrics.
type Observer interface {
	WSConnected()
	WSDisconnected()
}

type HubOptions struct {
	AllowedOrigins []string
	Authorize      JoinAuthorizer
	Observer       Observer
	// EventRate and EventBurst throttle inbound frames per connection.
	EventRate  rate.Limit
	EventBurst int
}

// Hub tracks sockets by user and by joined thread room.
type Hub struct {
	id       string
	upgrader websocket.Upgrader
	opts     HubOptions

	mu     sync.RWMutex
	byUser map[string]map[*Client]struct{}
	rooms  map[string]map[*Client]struct{}
	bridge Bridge
}

func NewHub(opts HubOptions) *Hub {
	if opts.EventRate == 0 {
		opts.EventRate = rate.Every(100 * time.Millisecond)
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = 20
	}
	h := &Hub{
		id:     uuid.NewString(),
		opts:   opts,
		byUser: map[string]map[*Client]struct{}{},
		rooms:  map[string]map[*Client]struct{}{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ID identifies this hub instance in bridged envelopes.
func (h *Hub) ID() string { return h.id }

func (h *Hub) SetBridge(b Bridge) {
	h.mu.Lock()
	h.bridge = b
	h.mu.Unlock()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, email string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Warn("websocket upgrade failed", "user", email, "err", err)
		return
	}
	c := &Client{
		hub:     h,
		conn:    conn,
		email:   strings.ToLower(email),
		send:    make(chan []byte, sendBufferSize),
		rooms:   map[string]struct{}{},
		limiter: rate.NewLimiter(h.opts.EventRate, h.opts.EventBurst),
	}
	h.register(c)
	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set := h.byUser[c.email]
	if set == nil {
		set = map[*Client]struct{}{}
		h.byUser[c.email] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	if h.opts.Observer != nil {
		h.opts.Observer.WSConnected()
	}
	logging.Log.Debug("websocket connected", "user", c.email)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set := h.byUser[c.email]; set != nil {
		if _, ok := set[c]; !ok {
			h.mu.Unlock()
			return
		}
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.email)
		}
	}
	for threadID := range c.rooms {
		h.leaveLocked(c, threadID)
	}
	close(c.send)
	h.mu.Unlock()
	if h.opts.Observer != nil {
		h.opts.Observer.WSDisconnected()
	}
	logging.Log.Debug("websocket disconnected", "user", c.email)
}

func (h *Hub) join(c *Client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[threadID]
	if room == nil {
		room = map[*Client]struct{}{}
		h.rooms[threadID] = room
	}
	room[c] = struct{}{}
	c.rooms[threadID] = struct{}{}
}

func (h *Hub) leave(c *Client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, threadID)
}

func (h *Hub) leaveLocked(c *Client, threadID string) {
	if room := h.rooms[threadID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, threadID)
		}
	}
	delete(c.rooms, threadID)
}

// Broadcast delivers msg to local sockets and forwards it through the bridge.
func (h *Hub) Broadcast(msg models.Message, participants []string) {
	h.Deliver(msg, participants)

	h.mu.RLock()
	bridge := h.bridge
	h.mu.RUnlock()
	if bridge == nil {
		return
	}
	if err := bridge.Publish(Envelope{Origin: h.id, Message: msg, Participants: participants}); err != nil {
		logging.Log.Warn("bridge publish failed", "thread", msg.ThreadID, "err", err)
	}
}

// Deliver sends message:new to the thread room and message:new-global to
// every socket owned by a participant.
func (h *Hub) Deliver(msg models.Message, participants []string) {
	roomFrame, err := encodeEvent(EventMessageNew, msg)
	if err != nil {
		logging.Log.Error("encode event", "err", err)
		return
	}
	globalFrame, err := encodeEvent(EventMessageNewGlobal, msg)
	if err != nil {
		logging.Log.Error("encode event", "err", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[msg.ThreadID] {
		if !c.enqueue(roomFrame) {
			slow = append(slow, c)
		}
	}
	for _, email := range participants {
		for c := range h.byUser[strings.ToLower(email)] {
			if !c.enqueue(globalFrame) {
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logging.Log.Warn("dropping slow websocket client", "user", c.email)
		_ = c.conn.Close()
	}
}

// Connections returns the number of open sockets.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.byUser {
		n += len(set)
	}
	return n
}

// Close terminates every open socket.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0)
	for _, set := range h.byUser {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}
