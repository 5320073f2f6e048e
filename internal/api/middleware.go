package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"artizen/internal/auth"
	"artizen/internal/db"
	"artizen/internal/logging"
	"artizen/internal/metrics"
	"artizen/internal/models"
	"artizen/internal/ratelimit"
)

type contextKey string

const userContextKey contextKey = "user"

type rateLimits struct {
	PostsPerHour     int
	MessagesPerMin   int
	TotalWritesDay   int
	ReadsPerMinute   int
	SearchPerMin     int
	FollowsPerMinute int
}

var defaultRateLimits = rateLimits{
	PostsPerHour:     20,
	MessagesPerMin:   120,
	TotalWritesDay:   500,
	ReadsPerMinute:   600,
	SearchPerMin:     60,
	FollowsPerMinute: 30,
}

// identify resolves the caller from a bearer token, a token query parameter on
// the websocket endpoint, or X-User-Email when that mode is enabled.
func identify(r *http.Request, opts Options) (string, error) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" && r.URL.Path == "/api/ws" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token != "" {
		return opts.Tokens.Verify(token)
	}
	if opts.AllowEmailHeader {
		if email := strings.TrimSpace(r.Header.Get("X-User-Email")); email != "" {
			return email, nil
		}
		if r.URL.Path == "/api/ws" {
			if email := strings.TrimSpace(r.URL.Query().Get("email")); email != "" {
				return email, nil
			}
		}
	}
	return "", errMissingCredentials
}

var errMissingCredentials = errors.New("missing credentials")

func authMiddleware(database *sql.DB, opts Options, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, err := identify(r, opts)
		if err != nil {
			if errors.Is(err, errMissingCredentials) {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := db.GetUser(r.Context(), database, email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
			return
		}

		if rec, ok := w.(*statusRecorder); ok {
			rec.user = user.Email
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(ctx context.Context) *models.User {
	v := ctx.Value(userContextKey)
	user, _ := v.(*models.User)
	return user
}

func rateLimitMiddleware(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "missing auth context")
			return
		}

		now := time.Now().UTC()
		for _, rule := range classifyRateChecks(r) {
			res := limiter.Allow(user.Email, rule, now)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				retryAfter := int(time.Until(res.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded: "+rule.Name)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func classifyRateChecks(r *http.Request) []ratelimit.Rule {
	checks := make([]ratelimit.Rule, 0, 2)
	path := r.URL.Path
	method := r.Method
	if method == http.MethodGet {
		checks = append(checks, ratelimit.Rule{Name: "reads", Limit: defaultRateLimits.ReadsPerMinute, Window: time.Minute})
	} else {
		checks = append(checks, ratelimit.Rule{Name: "writes", Limit: defaultRateLimits.TotalWritesDay, Window: 24 * time.Hour})
	}
	switch {
	case method == http.MethodGet && path == "/api/search/posts", method == http.MethodGet && path == "/api/users/search":
		checks = append(checks, ratelimit.Rule{Name: "search", Limit: defaultRateLimits.SearchPerMin, Window: time.Minute})
	case method == http.MethodPost && path == "/api/posts":
		checks = append(checks, ratelimit.Rule{Name: "posts", Limit: defaultRateLimits.PostsPerHour, Window: time.Hour})
	case method == http.MethodPost && path == "/api/chat/messages":
		checks = append(checks, ratelimit.Rule{Name: "messages", Limit: defaultRateLimits.MessagesPerMin, Window: time.Minute})
	case method == http.MethodPost && path == "/api/follows/toggle":
		checks = append(checks, ratelimit.Rule{Name: "follows", Limit: defaultRateLimits.FollowsPerMinute, Window: time.Minute})
	}
	return checks
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-User-Email")
		h.Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	// user is the identity resolved by authMiddleware, empty for public routes.
	user string
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func requestLogMiddleware(m *metrics.Metrics, next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := r.Pattern
		if route == "" {
			_, route = next.Handler(r)
		}
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, r.Method, rec.status, elapsed)
		logging.Log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
			"user", rec.user,
		)
	})
}
