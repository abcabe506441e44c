package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"cabinet-backend/internal/auth"
	"cabinet-backend/internal/models"
	"cabinet-backend/internal/transport"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	accessCookieName  = "cabinet_access"
	refreshCookieName = "cabinet_refresh"
)

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginResponse struct {
	Status       string `json:"status"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (s *Server) tokenManager() *auth.Manager {
	if s.Cfg.JWTSecret == "" {
		return nil
	}
	return &auth.Manager{
		Secret:     []byte(s.Cfg.JWTSecret),
		AccessTTL:  time.Duration(s.Cfg.AccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(s.Cfg.RefreshTTLMinutes) * time.Minute,
		Issuer:     "cabinet-backend",
	}
}

// issueAdminSession mints an access/refresh token pair and sets both as
// httpOnly cookies on the response.
func (s *Server) issueAdminSession(w http.ResponseWriter) (string, string, error) {
	manager := s.tokenManager()
	accessToken, err := manager.NewAccessToken("admin")
	if err != nil {
		return "", "", err
	}
	refreshToken, err := manager.NewRefreshToken("admin")
	if err != nil {
		return "", "", err
	}
	s.setSessionCookie(w, accessCookieName, accessToken, manager.AccessTTL)
	s.setSessionCookie(w, refreshCookieName, refreshToken, manager.RefreshTTL)
	return accessToken, refreshToken, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) AdminLogin(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AdminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("admin login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Username, _ = normalizeAdminUserIdentity(req.Username, "")
	if err := s.Val.Struct(req); err != nil {
		log.Warn("admin login: validation error")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}
	if s.Cfg.JWTSecret == "" {
		log.Warn("admin login: jwt secret missing")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	if !s.checkAdminCredentials(r.Context(), log, req.Username, req.Password) {
		log.Warn("admin login: invalid credentials", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	accessToken, refreshToken, err := s.issueAdminSession(w)
	if err != nil {
		log.Error("admin login: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("admin login: ok", slog.String("username", req.Username))
	transport.WriteJSON(w, http.StatusOK, AdminLoginResponse{
		Status:       "ok",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// checkAdminCredentials first tries the users collection, then falls back to
// the static ADMIN_USER/ADMIN_PASSWORD pair for bootstrap deployments.
func (s *Server) checkAdminCredentials(ctx context.Context, log *slog.Logger, username, password string) bool {
	if s.Cols != nil && s.Cols.Users != nil {
		findCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		var user models.User
		filter := bson.M{"role": models.UserRoleAdmin, "$or": bson.A{
			bson.M{"username": username},
			bson.M{"email": username},
		}}
		err := s.Cols.Users.FindOne(findCtx, filter).Decode(&user)
		switch {
		case err == nil:
			return auth.ComparePassword(user.PasswordHash, password) == nil
		case err != mongo.ErrNoDocuments:
			log.Error("admin login: database error", slog.String("error", err.Error()))
			return false
		}
	}

	if s.Cfg.AdminPassword == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.Cfg.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.Cfg.AdminPassword)) == 1
	return userOK && passOK
}

func (s *Server) AdminRefresh(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	manager := s.tokenManager()
	if manager == nil {
		log.Warn("admin refresh: jwt secret missing")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		log.Warn("admin refresh: missing cookie")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	claims, err := manager.Parse(cookie.Value)
	if err != nil || claims.Role != "admin" {
		log.Warn("admin refresh: invalid token")
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	accessToken, refreshToken, err := s.issueAdminSession(w)
	if err != nil {
		log.Error("admin refresh: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}

	log.Info("admin refresh: ok")
	transport.WriteJSON(w, http.StatusOK, AdminLoginResponse{
		Status:       "ok",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

func (s *Server) AdminLogout(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	s.clearSessionCookie(w, accessCookieName)
	s.clearSessionCookie(w, refreshCookieName)
	log.Info("admin logout: ok")
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
