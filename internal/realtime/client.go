package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"artizen/internal/logging"
)

// Client is one WebSocket connection owned by a user.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	email   string
	send    chan []byte
	rooms   map[string]struct{}
	limiter *rate.Limiter
}

// enqueue must be called with the hub lock held so send is not closed concurrently.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Log.Debug("websocket read failed", "user", c.email, "err", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.reply(EventError, map[string]string{"error": "rate limit exceeded"})
			continue
		}
		c.handle(ev)
	}
}

func (c *Client) handle(ev Event) {
	switch ev.Event {
	case EventThreadJoin, EventThreadLeave:
		var p joinPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || strings.TrimSpace(p.ThreadID) == "" {
			c.reply(EventError, map[string]string{"error": "threadId is required"})
			return
		}
		if ev.Event == EventThreadLeave {
			c.hub.leave(c, p.ThreadID)
			return
		}
		if auth := c.hub.opts.Authorize; auth != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := auth(ctx, p.ThreadID, c.email)
			cancel()
			if err != nil || !ok {
				c.reply(EventError, map[string]string{"error": "cannot join thread", "threadId": p.ThreadID})
				return
			}
		}
		c.hub.join(c, p.ThreadID)
	default:
		c.reply(EventError, map[string]string{"error": "unknown event: " + ev.Event})
	}
}

func (c *Client) reply(event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.byUser[c.email][c]; ok {
		c.enqueue(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
