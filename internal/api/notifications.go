package api

import (
	"database/sql"
	"net/http"

	"artizen/internal/db"
	"artizen/internal/logging"
)

// notificationsHandler lists the caller's notifications and then marks them read.
// The response reflects read state from before the call.
func notificationsHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		limit, ok := queryInt(r, "limit", 50)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		user := currentUser(r.Context())
		items, err := db.ListNotifications(r.Context(), database, user.Email, clamp(limit, 1, 200))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list notifications")
			return
		}
		if _, err := db.MarkAllNotificationsRead(r.Context(), database, user.Email); err != nil {
			logging.Log.Warn("mark notifications read failed", "user", user.Email, "err", err)
		}
		writeJSON(w, http.StatusOK, items)
	})
}

func notificationsUnreadHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		count, err := db.CountUnreadNotifications(r.Context(), database, currentUser(r.Context()).Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to count notifications")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
	})
}

func notificationsClearHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		removed, err := db.ClearNotifications(r.Context(), database, currentUser(r.Context()).Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to clear notifications")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
	})
}
