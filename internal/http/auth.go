package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tempo/internal/accounts"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email, username and password are required")
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		respondAccountsError(c, err, "register")
		return
	}
	token, err := h.accounts.IssueRefreshToken(c.Request.Context(), user.ID)
	if err != nil {
		respondAccountsError(c, err, "register")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "refreshToken": token})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email and password are required")
		return
	}
	user, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondAccountsError(c, err, "login")
		return
	}
	token, err := h.accounts.IssueRefreshToken(c.Request.Context(), user.ID)
	if err != nil {
		respondAccountsError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "refreshToken": token})
}

type anonymousSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// AnonymousSession finds or creates the throwaway user tied to a client
// session id, so unauthenticated clients can track time immediately.
func (h *Handlers) AnonymousSession(c *gin.Context) {
	var req anonymousSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "session_id is required")
		return
	}
	user, err := h.accounts.CreateAnonymousSession(c.Request.Context(), req.SessionID)
	if err != nil {
		respondAccountsError(c, err, "anonymous session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *Handlers) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "refreshToken is required")
		return
	}
	token, err := h.accounts.RotateRefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondAccountsError(c, err, "refresh token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshToken": token})
}

type requestResetRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handlers) RequestPasswordReset(c *gin.Context) {
	var req requestResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email is required")
		return
	}
	token, err := h.accounts.IssuePasswordResetToken(c.Request.Context(), req.Email)
	if err != nil {
		respondAccountsError(c, err, "request password reset")
		return
	}
	// Delivery (mail) is out of scope; the token is returned directly.
	c.JSON(http.StatusOK, gin.H{"resetToken": token})
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *Handlers) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "token and newPassword are required")
		return
	}
	if err := h.accounts.ConsumePasswordResetToken(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondAccountsError(c, err, "reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// DeleteAccount removes the authenticated user and everything they own.
func (h *Handlers) DeleteAccount(c *gin.Context) {
	if err := h.accounts.DeleteAccount(c.Request.Context(), GetUserID(c)); err != nil {
		respondAccountsError(c, err, "delete account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

// respondAccountsError maps service-level auth failures before falling
// back to the storage taxonomy.
func respondAccountsError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, accounts.ErrInvalidPassword):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, accounts.ErrPasswordTooShort), errors.Is(err, accounts.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, accounts.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	default:
		respondStorageError(c, err, context)
	}
}
