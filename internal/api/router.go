package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"artizen/internal/auth"
	"artizen/internal/db"
	"artizen/internal/feedcache"
	"artizen/internal/metrics"
	"artizen/internal/ratelimit"
	"artizen/internal/realtime"
)

type Options struct {
	Version          string
	Tokens           *auth.TokenManager
	AllowEmailHeader bool
	Hub              *realtime.Hub
	FeedCache        feedcache.Cache
	Metrics          *metrics.Metrics
	Limiter          *ratelimit.Limiter
	FeedDefaultLimit int
	FeedMaxLimit     int
	ChatDefaultTake  int
	ChatMaxTake      int
}

func (o Options) withDefaults(database *sql.DB) Options {
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.Tokens == nil {
		o.Tokens = auth.NewTokenManager(uuid.NewString(), 0)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	if o.Hub == nil {
		o.Hub = realtime.NewHub(realtime.HubOptions{
			Authorize: participantAuthorizer(database),
			Observer:  o.Metrics,
		})
	}
	if o.FeedCache == nil {
		o.FeedCache = feedcache.Nop{}
	}
	if o.Limiter == nil {
		o.Limiter = ratelimit.NewLimiter()
	}
	if o.FeedDefaultLimit <= 0 {
		o.FeedDefaultLimit = db.DefaultFeedLimit
	}
	if o.FeedMaxLimit < o.FeedDefaultLimit {
		o.FeedMaxLimit = db.MaxFeedLimit
	}
	if o.ChatDefaultTake <= 0 {
		o.ChatDefaultTake = db.DefaultMessageTake
	}
	if o.ChatMaxTake < o.ChatDefaultTake {
		o.ChatMaxTake = db.MaxMessageTake
	}
	return o
}

// participantAuthorizer lets the realtime hub admit only thread participants to a room.
func participantAuthorizer(database *sql.DB) realtime.JoinAuthorizer {
	return func(ctx context.Context, threadID, email string) (bool, error) {
		return db.IsParticipant(ctx, database, threadID, email)
	}
}

// ParticipantAuthorizer is exported for servers that build their own hub.
func ParticipantAuthorizer(database *sql.DB) realtime.JoinAuthorizer {
	return participantAuthorizer(database)
}

func NewRouter(database *sql.DB, opts Options) http.Handler {
	opts = opts.withDefaults(database)
	mux := http.NewServeMux()
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(database, opts, rateLimitMiddleware(opts.Limiter, h))
	}

	mux.HandleFunc("/api/status", statusHandler(database, opts.Version))
	mux.Handle("/api/stats", withAuth(statsHandler(database)))
	mux.Handle("/metrics", opts.Metrics.Handler())

	mux.Handle("/api/auth/signup", signupHandler(database, opts.Tokens))
	mux.Handle("/api/auth/login", loginHandler(database, opts.Tokens))
	mux.Handle("/api/auth/change-password", withAuth(changePasswordHandler(database)))
	mux.Handle("/api/auth/delete-account", withAuth(deleteAccountHandler(database, opts.FeedCache)))

	mux.Handle("/api/users/me", withAuth(meHandler()))
	mux.Handle("/api/users/search", withAuth(userSearchHandler(database)))
	mux.Handle("/api/users/profile", withAuth(profileHandler(database)))
	mux.Handle("/api/follows/toggle", withAuth(followToggleHandler(database)))
	mux.Handle("/api/follows/check", withAuth(followCheckHandler(database)))
	mux.Handle("/api/follows/counts", withAuth(followCountsHandler(database)))

	mux.Handle("/api/posts/all", withAuth(feedHandler(database, opts)))
	mux.Handle("/api/posts", withAuth(createPostHandler(database, opts.FeedCache)))
	mux.Handle("/api/posts/", withAuth(postItemHandler(database, opts.FeedCache)))
	mux.Handle("/api/posts/like/", withAuth(likeHandler(database, opts.FeedCache)))
	mux.Handle("/api/posts/comment/", withAuth(commentHandler(database, opts.FeedCache)))
	mux.Handle("/api/search/posts", withAuth(searchPostsHandler(database)))

	mux.Handle("/api/chat/threads", withAuth(threadsHandler(database)))
	mux.Handle("/api/chat/threads/", withAuth(threadMessagesHandler(database, opts)))
	mux.Handle("/api/chat/messages", withAuth(sendMessageHandler(database, opts)))
	mux.Handle("/api/ws", withAuth(wsHandler(opts.Hub)))

	mux.Handle("/api/notifications", withAuth(notificationsHandler(database)))
	mux.Handle("/api/notifications/unread", withAuth(notificationsUnreadHandler(database)))
	mux.Handle("/api/notifications/clear", withAuth(notificationsClearHandler(database)))

	return corsMiddleware(requestLogMiddleware(opts.Metrics, mux))
}

func statusHandler(database *sql.DB, version string) http.HandlerFunc {
	type statusResponse struct {
		Status    string `json:"status"`
		Version   string `json:"version"`
		Timestamp string `json:"timestamp"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}

		if err := database.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Status:    "ok",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func statsHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		stats, err := db.GetNetworkStats(r.Context(), database)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})
}

func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	tail = strings.Trim(tail, "/")
	return tail
}

func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func decodeBody(r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
