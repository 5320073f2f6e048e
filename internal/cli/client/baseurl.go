package client

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"
)

const DefaultLocalTimeout = 3 * time.Second

// ResolveBaseURL picks the local server when host is a loopback name.
func ResolveBaseURL(host, local, production string) string {
	h := strings.TrimSpace(host)
	if hp, _, err := net.SplitHostPort(h); err == nil {
		h = hp
	}
	h = strings.Trim(h, "[]")
	switch strings.ToLower(h) {
	case "localhost", "127.0.0.1", "::1":
		return strings.TrimSuffix(local, "/")
	}
	return strings.TrimSuffix(production, "/")
}

// Fallback tries the local server first with a short timeout. After the first
// transport failure it switches to production for the rest of its life.
type Fallback struct {
	local        string
	production   string
	localTimeout time.Duration

	mu     sync.Mutex
	sticky bool
}

func NewFallback(local, production string) *Fallback {
	return &Fallback{
		local:        strings.TrimSuffix(local, "/"),
		production:   strings.TrimSuffix(production, "/"),
		localTimeout: DefaultLocalTimeout,
	}
}

func (f *Fallback) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sticky || f.local == "" {
		return f.production
	}
	return f.local
}

func (f *Fallback) usingProduction() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sticky || f.local == ""
}

func (f *Fallback) stick() {
	f.mu.Lock()
	f.sticky = true
	f.mu.Unlock()
}

func (f *Fallback) run(ctx context.Context, attempt func(ctx context.Context, base string) error) error {
	if f.usingProduction() {
		return attempt(ctx, f.production)
	}

	localCtx, cancel := context.WithTimeout(ctx, f.localTimeout)
	err := attempt(localCtx, f.local)
	cancel()
	if err == nil || !isTransportFailure(err) || ctx.Err() != nil {
		return err
	}
	f.stick()
	return attempt(ctx, f.production)
}

func isTransportFailure(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Status == 0
}

func (f *Fallback) WithLocalTimeout(d time.Duration) *Fallback {
	if d > 0 {
		f.localTimeout = d
	}
	return f
}
