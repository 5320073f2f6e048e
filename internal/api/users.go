package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"artizen/internal/db"
)

func meHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, currentUser(r.Context()))
	})
}

func userSearchHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		user := currentUser(r.Context())
		users, err := db.SearchUsers(r.Context(), database, r.URL.Query().Get("q"), user.Email, 20)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to search users")
			return
		}
		writeJSON(w, http.StatusOK, users)
	})
}

func profileHandler(database *sql.DB) http.Handler {
	type updateRequest struct {
		FullName     *string `json:"fullName"`
		Bio          *string `json:"bio"`
		Link         *string `json:"link"`
		ProfileImage *string `json:"profileImage"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r.Context())
		switch r.Method {
		case http.MethodGet:
			email := strings.TrimSpace(r.URL.Query().Get("email"))
			if email == "" {
				email = user.Email
			}
			profile, err := db.GetProfile(r.Context(), database, email, user.Email)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					writeError(w, http.StatusNotFound, "user not found")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to load profile")
				return
			}
			writeJSON(w, http.StatusOK, profile)
		case http.MethodPut:
			var req updateRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json body")
				return
			}
			_, err := db.UpdateProfile(r.Context(), database, user.Email, db.ProfileUpdate{
				FullName:     req.FullName,
				Bio:          req.Bio,
				Link:         req.Link,
				ProfileImage: req.ProfileImage,
			})
			if err != nil {
				if errors.Is(err, db.ErrInvalidInput) {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to update profile")
				return
			}
			profile, err := db.GetProfile(r.Context(), database, user.Email, user.Email)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load profile")
				return
			}
			writeJSON(w, http.StatusOK, profile)
		default:
			methodNotAllowed(w)
		}
	})
}

type emailRequest struct {
	Email string `json:"email"`
}

type followingResponse struct {
	Following bool `json:"following"`
}

func followToggleHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req emailRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		user := currentUser(r.Context())
		following, err := db.ToggleFollow(r.Context(), database, user.Email, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				writeError(w, http.StatusNotFound, "user not found")
			case errors.Is(err, db.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "failed to toggle follow")
			}
			return
		}
		writeJSON(w, http.StatusOK, followingResponse{Following: following})
	})
}

func followCheckHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		target := strings.TrimSpace(r.URL.Query().Get("email"))
		if target == "" {
			writeError(w, http.StatusBadRequest, "email is required")
			return
		}
		following, err := db.IsFollowing(r.Context(), database, currentUser(r.Context()).Email, target)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check follow")
			return
		}
		writeJSON(w, http.StatusOK, followingResponse{Following: following})
	})
}

func followCountsHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			email = currentUser(r.Context()).Email
		}
		counts, err := db.GetFollowCounts(r.Context(), database, email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load follow counts")
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})
}
