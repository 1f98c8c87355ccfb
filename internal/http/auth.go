package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/readilyreads/server/internal/auth"
	"github.com/readilyreads/server/internal/database/audit"
	"github.com/readilyreads/server/internal/entities"
)

// AuthController handles registration, login, token refresh, and the
// current-user profile.
type AuthController struct {
	service *auth.Service
	audit   *audit.Repository
}

func NewAuthController(service *auth.Service, auditRepo *audit.Repository) *AuthController {
	return &AuthController{service: service, audit: auditRepo}
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Register creates a new account and returns the user summary together
// with an access/refresh token pair.
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	user, err := ac.service.Register(req.Username, req.Email, req.Password, req.Password2)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			respondBadRequest(c, "a user with that username already exists")
			return
		}
		respondBadRequest(c, err.Error())
		return
	}

	tokens, err := ac.service.IssueTokens(user)
	if err != nil {
		respondInternalError(c, err, "register")
		return
	}

	ac.logAuthEvent(c, user.ID, "register", entities.AuditStatusSuccess)

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

// Login exchanges credentials for an access/refresh token pair.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondBadRequest(c, "username and password are required")
		return
	}

	user, err := ac.service.Authenticate(req.Username, req.Password)
	if err != nil {
		ac.logAuthEvent(c, 0, "login", entities.AuditStatusFailed)
		respondUnauthorized(c, "invalid credentials")
		return
	}

	tokens, err := ac.service.IssueTokens(user)
	if err != nil {
		respondInternalError(c, err, "login")
		return
	}

	ac.logAuthEvent(c, user.ID, "login", entities.AuditStatusSuccess)

	c.JSON(http.StatusOK, tokens)
}

// RefreshToken exchanges a valid refresh token for a fresh pair. The used
// token is revoked; invalid or expired tokens yield 401 and issue nothing.
func (ac *AuthController) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	tokens, err := ac.service.Refresh(req.Refresh)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenExpired) ||
			errors.Is(err, auth.ErrUserNotFound) {
			ac.logAuthEvent(c, 0, "token_refresh", entities.AuditStatusFailed)
			respondUnauthorized(c, "refresh token is invalid or expired")
			return
		}
		respondInternalError(c, err, "token refresh")
		return
	}

	if claims, err := ac.service.ValidateAccess(tokens.Access); err == nil {
		ac.logAuthEvent(c, claims.UserID, "token_refresh", entities.AuditStatusSuccess)
	}
	c.JSON(http.StatusOK, tokens)
}

// Me returns the authenticated user with their profile.
func (ac *AuthController) Me(c *gin.Context) {
	user, err := ac.service.GetUserByID(GetUserID(c))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respondNotFound(c, "user")
			return
		}
		respondInternalError(c, err, "profile")
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe applies a partial update to the user's email and profile fields.
func (ac *AuthController) UpdateMe(c *gin.Context) {
	var update auth.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	user, err := ac.service.UpdateProfile(GetUserID(c), update)
	if err != nil {
		if errors.Is(err, auth.ErrEmailInvalid) {
			respondBadRequest(c, err.Error())
			return
		}
		respondInternalError(c, err, "profile update")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (ac *AuthController) logAuthEvent(c *gin.Context, userID uint, action string, status entities.AuditStatus) {
	if ac.audit == nil {
		return
	}
	err := ac.audit.LogEvent(&entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: c.ClientIP(),
		Status:    status,
	})
	if err != nil {
		log.Printf("Failed to record audit event (%s): %v", action, err)
	}
}
