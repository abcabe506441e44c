package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cabinet-backend/internal/auth"
	"cabinet-backend/internal/models"
	"cabinet-backend/internal/transport"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Admin accounts cover the practitioner and, at most, an assistant. Register
// is a one-time bootstrap gated by the setup key; once an admin exists, new
// accounts go through the authenticated create endpoint.

type AdminAccountRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
	SetupKey string `json:"setupKey"`
}

type AdminPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// normalizeAdminUserIdentity trims both values and lowercases the email. The
// username is only lowercased when it is itself an email address.
func normalizeAdminUserIdentity(username, email string) (string, string) {
	username = strings.TrimSpace(username)
	if strings.Contains(username, "@") {
		username = strings.ToLower(username)
	}
	return username, strings.ToLower(strings.TrimSpace(email))
}

func newAdminAccount(username, email, passwordHash string, now time.Time) models.User {
	return models.User{
		ID:           primitive.NewObjectID().Hex(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.UserRoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// insertAdminAccount hashes the password and writes the account, mapping a
// duplicate username or email to a conflict the handlers report as 409.
func (s *Server) insertAdminAccount(ctx context.Context, username, email, password string) (models.User, int, string) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, http.StatusInternalServerError, "password error"
	}

	user := newAdminAccount(username, email, hash, time.Now().In(s.Cfg.Timezone))

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.Cols.Users.InsertOne(insertCtx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, http.StatusConflict, "username or email already exists"
		}
		return models.User{}, http.StatusInternalServerError, "database error"
	}
	return user, 0, ""
}

func (s *Server) usersConfigured(w http.ResponseWriter, log *slog.Logger, area string) bool {
	if s.Cols == nil || s.Cols.Users == nil {
		log.Warn(area + ": not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin users not configured", nil)
		return false
	}
	return true
}

func (s *Server) AdminRegister(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AdminAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("admin register: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Username, req.Email = normalizeAdminUserIdentity(req.Username, req.Email)
	if err := s.Val.Struct(req); err != nil {
		log.Warn("admin register: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", validationDetails(s.Val.ValidationErrors(err)))
		return
	}
	if !s.usersConfigured(w, log, "admin register") {
		return
	}
	if s.Cfg.AdminSetupKey == "" || s.Cfg.JWTSecret == "" {
		log.Warn("admin register: setup key or jwt secret missing")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin registration not configured", nil)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.SetupKey), []byte(s.Cfg.AdminSetupKey)) != 1 {
		log.Warn("admin register: invalid setup key", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid setup key", nil)
		return
	}

	countCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	existing, err := s.Cols.Users.CountDocuments(countCtx, bson.M{"role": models.UserRoleAdmin})
	if err != nil {
		log.Error("admin register: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if existing > 0 {
		log.Warn("admin register: already initialised")
		transport.WriteError(w, http.StatusConflict, "cabinet already initialised", nil)
		return
	}

	user, status, msg := s.insertAdminAccount(r.Context(), req.Username, req.Email, req.Password)
	if status != 0 {
		log.Warn("admin register: "+msg, slog.String("username", req.Username))
		transport.WriteError(w, status, msg, nil)
		return
	}

	accessToken, refreshToken, err := s.issueAdminSession(w)
	if err != nil {
		log.Error("admin register: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("admin register: ok", slog.String("user_id", user.ID), slog.String("username", user.Username))
	transport.WriteJSON(w, http.StatusCreated, AdminLoginResponse{
		Status:       "ok",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

func (s *Server) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AdminAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("admin users create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Username, req.Email = normalizeAdminUserIdentity(req.Username, req.Email)
	if err := s.Val.Struct(req); err != nil {
		log.Warn("admin users create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", validationDetails(s.Val.ValidationErrors(err)))
		return
	}
	if !s.usersConfigured(w, log, "admin users create") {
		return
	}

	user, status, msg := s.insertAdminAccount(r.Context(), req.Username, req.Email, req.Password)
	if status != 0 {
		log.Warn("admin users create: "+msg, slog.String("username", req.Username))
		transport.WriteError(w, status, msg, nil)
		return
	}

	log.Info("admin users create: ok", slog.String("user_id", user.ID), slog.String("username", user.Username))
	transport.WriteJSON(w, http.StatusCreated, user)
}

func (s *Server) AdminUpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	id := chi.URLParam(r, "id")
	if id == "" {
		log.Warn("admin users password: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req AdminPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("admin users password: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		log.Warn("admin users password: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", validationDetails(s.Val.ValidationErrors(err)))
		return
	}
	if !s.usersConfigured(w, log, "admin users password") {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error("admin users password: hash error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "password error", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"passwordHash": hash,
		"updatedAt":    time.Now().In(s.Cfg.Timezone),
	}}
	res, err := s.Cols.Users.UpdateOne(ctx, bson.M{"_id": id, "role": models.UserRoleAdmin}, update)
	if err != nil {
		log.Error("admin users password: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if res.MatchedCount == 0 {
		log.Warn("admin users password: not found", slog.String("user_id", id))
		transport.WriteError(w, http.StatusNotFound, "user not found", nil)
		return
	}

	log.Info("admin users password: ok", slog.String("user_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
