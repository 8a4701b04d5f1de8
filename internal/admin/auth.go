package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/session"
)

const actorKey = "admin_username"

// Auth checks the single operator account and issues session tokens.
type Auth struct {
	username string
	hash     []byte
	sessions session.Store
}

// NewAuth prefers a bcrypt hash. A plain password is hashed once at startup.
func NewAuth(username, password, passwordHash string, sessions session.Store) (*Auth, error) {
	if username == "" {
		return nil, errors.New("admin username is not configured")
	}
	a := &Auth{username: username, sessions: sessions}
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		a.hash = []byte(passwordHash)
	case password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		a.hash = hash
	default:
		return nil, errors.New("admin password is not configured")
	}
	return a, nil
}

func (a *Auth) Login(ctx context.Context, username, password string) (session.Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return session.Session{}, apperrors.ErrInvalidCredentials
	}
	return a.sessions.Create(ctx, username)
}

func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.sessions.Revoke(ctx, token)
}

// Middleware rejects requests without a valid bearer session.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			respondError(c, apperrors.ErrInvalidSession)
			c.Abort()
			return
		}
		s, err := a.sessions.Validate(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(actorKey, s.Username)
		c.Next()
	}
}

func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func actor(c *gin.Context) string {
	return c.GetString(actorKey)
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperrors.CodeValidation})
		return
	}
	s, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": s.Token, "expires_at": s.ExpiresAt})
}

func (h *handler) logout(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context(), bearer(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *handler) validate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"valid": true, "username": actor(c)})
}
