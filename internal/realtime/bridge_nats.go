package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"artizen/internal/logging"
)

const SubjectMessageNew = "chat.message.new"

type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	ClientName    string
}

// NATSBridge fans chat messages out across server instances.
type NATSBridge struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
}

func ConnectNATS(cfg NATSConfig) (*NATSBridge, error) {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logging.Log.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	return &NATSBridge{conn: conn, subject: SubjectMessageNew}, nil
}

func (b *NATSBridge) Publish(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.conn.Publish(b.subject, data)
}

// Attach subscribes hub to envelopes published by other instances.
func (b *NATSBridge) Attach(hub *Hub) error {
	sub, err := b.conn.Subscribe(b.subject, func(m *nats.Msg) {
		env, ok := decodeEnvelope(m.Data, hub.ID())
		if !ok {
			return
		}
		hub.Deliver(env.Message, env.Participants)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", b.subject, err)
	}
	b.sub = sub
	hub.SetBridge(b)
	return nil
}

func (b *NATSBridge) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}

// decodeEnvelope rejects malformed payloads and envelopes this instance published itself.
func decodeEnvelope(data []byte, self string) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.Log.Warn("nats envelope decode failed", "err", err)
		return Envelope{}, false
	}
	if env.Origin == self || env.Message.ThreadID == "" {
		return Envelope{}, false
	}
	return env, true
}
