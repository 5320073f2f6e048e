package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"artizen/internal/db"
	"artizen/internal/realtime"
)

func threadsHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r.Context())
		switch r.Method {
		case http.MethodGet:
			threads, err := db.ListThreads(r.Context(), database, user.Email)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to list threads")
				return
			}
			writeJSON(w, http.StatusOK, threads)
		case http.MethodPost:
			var req emailRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json body")
				return
			}
			thread, err := db.OpenThread(r.Context(), database, user.Email, req.Email)
			if err != nil {
				switch {
				case errors.Is(err, sql.ErrNoRows):
					writeError(w, http.StatusNotFound, "user not found")
				case errors.Is(err, db.ErrInvalidInput):
					writeError(w, http.StatusBadRequest, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, "failed to open thread")
				}
				return
			}
			writeJSON(w, http.StatusOK, thread)
		default:
			methodNotAllowed(w)
		}
	})
}

// threadMessagesHandler serves GET /api/chat/threads/:id and
// GET /api/chat/threads/:id/messages?take&cursor.
func threadMessagesHandler(database *sql.DB, opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		parts := strings.Split(pathTail(r.URL.Path, "/api/chat/threads/"), "/")
		threadID := parts[0]
		if threadID == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "messages") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		user := currentUser(r.Context())
		ok, err := db.IsParticipant(r.Context(), database, threadID, user.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusNotFound, "thread not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load thread")
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "not a participant")
			return
		}

		if len(parts) == 1 {
			thread, err := db.GetThread(r.Context(), database, threadID, user.Email)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load thread")
				return
			}
			writeJSON(w, http.StatusOK, thread)
			return
		}

		take, valid := queryInt(r, "take", opts.ChatDefaultTake)
		if !valid {
			writeError(w, http.StatusBadRequest, "invalid take")
			return
		}
		messages, err := db.ListMessages(r.Context(), database, threadID, clamp(take, 1, opts.ChatMaxTake), r.URL.Query().Get("cursor"))
		if err != nil {
			if errors.Is(err, db.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to list messages")
			return
		}
		writeJSON(w, http.StatusOK, messages)
	})
}

func sendMessageHandler(database *sql.DB, opts Options) http.Handler {
	type sendRequest struct {
		ThreadID string `json:"threadId"`
		Text     string `json:"text"`
		ClientID string `json:"clientId"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req sendRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if strings.TrimSpace(req.ThreadID) == "" {
			writeError(w, http.StatusBadRequest, "threadId is required")
			return
		}

		user := currentUser(r.Context())
		msg, created, err := db.CreateMessage(r.Context(), database, req.ThreadID, user.Email, req.Text, req.ClientID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				writeError(w, http.StatusNotFound, "thread not found")
			case errors.Is(err, db.ErrForbidden):
				writeError(w, http.StatusForbidden, "not a participant")
			case errors.Is(err, db.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "failed to send message")
			}
			return
		}
		if !created {
			writeJSON(w, http.StatusOK, msg)
			return
		}

		participants, err := db.ThreadParticipants(r.Context(), database, msg.ThreadID)
		if err == nil {
			opts.Hub.Broadcast(*msg, participants)
		}
		opts.Metrics.MessageSent()
		writeJSON(w, http.StatusCreated, msg)
	})
}

func wsHandler(hub *realtime.Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		hub.ServeWS(w, r, currentUser(r.Context()).Email)
	})
}
