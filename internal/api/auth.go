package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"artizen/internal/auth"
	"artizen/internal/db"
	"artizen/internal/feedcache"
	"artizen/internal/logging"
	"artizen/internal/models"
)

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func signupHandler(database *sql.DB, tokens *auth.TokenManager) http.Handler {
	type signupRequest struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		DOB      string `json:"dob"`
		Password string `json:"password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req signupRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrWeakPassword) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}

		user, err := db.CreateUser(r.Context(), database, db.NewUser{
			Email:        req.Email,
			FullName:     req.FullName,
			DOB:          strings.TrimSpace(req.DOB),
			PasswordHash: hash,
		})
		if err != nil {
			switch {
			case errors.Is(err, db.ErrConflict):
				writeError(w, http.StatusConflict, "email already registered")
			case errors.Is(err, db.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "failed to create user")
			}
			return
		}

		token, err := tokens.Issue(user.Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to issue token")
			return
		}
		logging.Log.Info("user signed up", "email", user.Email)
		writeJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
	})
}

func loginHandler(database *sql.DB, tokens *auth.TokenManager) http.Handler {
	type loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req loginRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}

		user, hash, err := db.GetUserCredentials(r.Context(), database, req.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "invalid email or password")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if !auth.CheckPassword(hash, req.Password) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}

		token, err := tokens.Issue(user.Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to issue token")
			return
		}
		writeJSON(w, http.StatusOK, authResponse{User: user, Token: token})
	})
}

func changePasswordHandler(database *sql.DB) http.Handler {
	type changeRequest struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req changeRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.CurrentPassword == "" || req.NewPassword == "" {
			writeError(w, http.StatusBadRequest, "currentPassword and newPassword are required")
			return
		}

		user := currentUser(r.Context())
		_, hash, err := db.GetUserCredentials(r.Context(), database, user.Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if !auth.CheckPassword(hash, req.CurrentPassword) {
			writeError(w, http.StatusUnauthorized, "incorrect current password")
			return
		}
		newHash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			if errors.Is(err, auth.ErrWeakPassword) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		if err := db.SetPasswordHash(r.Context(), database, user.Email, newHash); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to change password")
			return
		}
		logging.Log.Info("password changed", "email", user.Email)
		writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
	})
}

// deleteAccountHandler requires the account password again before removing
// the caller and everything they authored.
func deleteAccountHandler(database *sql.DB, cache feedcache.Cache) http.Handler {
	type deleteRequest struct {
		Password string `json:"password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req deleteRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}

		user := currentUser(r.Context())
		_, hash, err := db.GetUserCredentials(r.Context(), database, user.Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if !auth.CheckPassword(hash, req.Password) {
			writeError(w, http.StatusUnauthorized, "incorrect password")
			return
		}
		removed, err := db.DeleteAccount(r.Context(), database, user.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to delete account")
			return
		}
		invalidateFeed(r.Context(), cache)
		logging.Log.Info("account deleted", "email", user.Email, "posts", removed.Posts, "comments", removed.Comments)
		writeJSON(w, http.StatusOK, map[string]any{"deleted": user.Email, "removed": removed})
	})
}
