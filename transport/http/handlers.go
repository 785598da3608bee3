package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/gatekeeper/core"
)

// Verifier is the part of the verification service exposed over HTTP
type Verifier interface {
	Challenge(ctx context.Context, userID int64) (string, error)
	VerifyLink(ctx context.Context, sub core.SignatureSubmission) (core.VerifyResult, error)
	ResolveLink(ctx context.Context, token string) (int64, string, error)
}

// VerifyHandlers contains HTTP handlers for the verify-via-link flow
type VerifyHandlers struct {
	verifier Verifier
}

// NewVerifyHandlers creates new verify handlers
func NewVerifyHandlers(verifier Verifier) *VerifyHandlers {
	return &VerifyHandlers{
		verifier: verifier,
	}
}

// Challenge returns the challenge the user has to sign
func (h *VerifyHandlers) Challenge(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	nonce, err := h.verifier.Challenge(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": nonce})
}

// Verify handles a signed challenge submitted by the frontend
func (h *VerifyHandlers) Verify(c *gin.Context) {
	var req struct {
		UserID        int64  `json:"userId" binding:"required"`
		WalletAddress string `json:"walletAddress" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.verifier.VerifyLink(c.Request.Context(), core.SignatureSubmission{
		UserID:    req.UserID,
		ChatID:    req.UserID,
		Wallet:    req.WalletAddress,
		Signature: req.Signature,
	})
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Verification failed"

		// Map specific errors to appropriate status codes
		switch {
		case errors.Is(err, core.ErrInvalidAddress):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid wallet address"
		case errors.Is(err, core.ErrInvalidInput):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid request"
		case errors.Is(err, core.ErrChallengeMissing):
			statusCode = http.StatusBadRequest
			errorMsg = "No active challenge"
		case errors.Is(err, core.ErrInvalidSignature):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid signature"
		case errors.Is(err, core.ErrInsufficientBalance):
			statusCode = http.StatusForbidden
			errorMsg = "Insufficient token balance"
		case errors.Is(err, core.ErrIssuanceFailure):
			errorMsg = "Verified, but the invite link could not be created"
		}

		c.JSON(statusCode, gin.H{"success": false, "error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"inviteLink": result.InviteLink,
		"expiresAt":  result.ExpiresAt.UTC(),
	})
}

// Link resolves a verify-link token to its user and challenge
func (h *VerifyHandlers) Link(c *gin.Context) {
	userID, nonce, err := h.verifier.ResolveLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Link expired"})
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve link"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":    userID,
		"challenge": nonce,
	})
}

// Health reports liveness
func (h *VerifyHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
