package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/brightcrm/brightcrm-auth/internal/config"
	"github.com/brightcrm/brightcrm-auth/internal/domain"
	"github.com/brightcrm/brightcrm-auth/internal/http/middleware"
	"github.com/brightcrm/brightcrm-auth/internal/service"
	"github.com/brightcrm/brightcrm-auth/internal/session"
)

const defaultRedirect = "/dashboard"

// AuthHandler serves login, logout, and directory endpoints.
type AuthHandler struct {
	Auth      *service.AuthService
	Directory *service.DirectoryService
	Sessions  *session.Manager
	Cfg       config.Config
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, directory *service.DirectoryService, sessions *session.Manager, cfg config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, Directory: directory, Sessions: sessions, Cfg: cfg}
}

// Login authenticates an identifier/password pair and establishes a
// session cookie. Every denial reads the same to the client; the reason
// stays in the audit log.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Identifier string `form:"identifier" json:"identifier"`
		Email      string `form:"email" json:"email"`
		Password   string `form:"password" json:"password" binding:"required"`
		Redirect   string `form:"redirect" json:"redirect"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Identifier and password are required."})
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Identifier and password are required."})
		return
	}

	acct, err := h.Auth.Authenticate(c.Request.Context(), identifier, req.Password)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	now := time.Now().UTC()
	token, err := h.Sessions.Issue(acct, now)
	if err != nil {
		zap.L().Error("session issue failed", zap.Int64("user_id", acct.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.Cfg.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(h.Sessions.TTL()),
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusOK, gin.H{
		"user":     service.NewAccountView(acct),
		"redirect": sanitizeRedirect(req.Redirect),
	})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.Cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetSessionUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_session", "error_description": "Authentication required."})
		return
	}
	acct, err := h.Directory.AccountByID(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewAccountView(acct))
}

// ListUsers returns active accounts ordered by last then first name.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	accounts, err := h.Directory.ActiveAccounts(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": service.NewAccountViews(accounts)})
}

// ListUsersByRole returns active accounts holding the role, newest first.
func (h *AuthHandler) ListUsersByRole(c *gin.Context) {
	role := strings.TrimSpace(c.Param("role"))
	if role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "role is required."})
		return
	}
	accounts, err := h.Directory.AccountsByRole(c.Request.Context(), role)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": service.NewAccountViews(accounts)})
}

// UserStats returns directory aggregate counts.
func (h *AuthHandler) UserStats(c *gin.Context) {
	stats, err := h.Directory.Statistics(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// LockUser imposes an administrative lock, default 15 minutes.
func (h *AuthHandler) LockUser(c *gin.Context) {
	userID, ok := h.pathUserID(c)
	if !ok {
		return
	}
	var req struct {
		Minutes int `form:"minutes" json:"minutes"`
	}
	_ = c.ShouldBind(&req)
	if req.Minutes <= 0 {
		req.Minutes = 15
	}
	if err := h.Auth.Lock(c.Request.Context(), userID, time.Duration(req.Minutes)*time.Minute); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "locked"})
}

// UnlockUser lifts a lock immediately.
func (h *AuthHandler) UnlockUser(c *gin.Context) {
	userID, ok := h.pathUserID(c)
	if !ok {
		return
	}
	if err := h.Auth.Unlock(c.Request.Context(), userID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

// DeactivateUser soft-disables an account.
func (h *AuthHandler) DeactivateUser(c *gin.Context) {
	userID, ok := h.pathUserID(c)
	if !ok {
		return
	}
	if err := h.Auth.Deactivate(c.Request.Context(), userID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// ReactivateUser re-enables an account.
func (h *AuthHandler) ReactivateUser(c *gin.Context) {
	userID, ok := h.pathUserID(c)
	if !ok {
		return
	}
	if err := h.Auth.Reactivate(c.Request.Context(), userID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reactivated"})
}

func (h *AuthHandler) pathUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid user id."})
		return 0, false
	}
	return userID, true
}

// respondAuthError collapses every authentication denial into one generic
// message so callers cannot probe which accounts exist.
func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrBadCredentials),
		errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrAccountLocked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "error_description": "Invalid credentials or account unavailable."})
	default:
		zap.L().Error("authentication failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}

func (h *AuthHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Account not found."})
	case errors.Is(err, domain.ErrInvalidProfile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	default:
		zap.L().Error("service failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}

// sanitizeRedirect only accepts local paths. Browsers treat a backslash
// like a forward slash, so "/\host" is as protocol-relative as "//host".
func sanitizeRedirect(target string) string {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" || !strings.HasPrefix(trimmed, "/") ||
		strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/\\") {
		return defaultRedirect
	}
	return trimmed
}
