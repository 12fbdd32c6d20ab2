package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"coffeeshop/internal/services"
)

// SecurityHandler handles admin account-security requests.
type SecurityHandler struct {
	securityService services.AccountSecurityServicer
	auditService    services.AuditServicer
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(securityService services.AccountSecurityServicer, auditService services.AuditServicer) *SecurityHandler {
	return &SecurityHandler{securityService: securityService, auditService: auditService}
}

// LockRequest represents the request payload for locking an account.
// Duration is in minutes and only applies to temporary locks.
type LockRequest struct {
	Reason    string `json:"reason" binding:"required,lock_reason"`
	Duration  int    `json:"duration" binding:"omitempty,min=1"`
	Permanent bool   `json:"permanent"`
}

// LockAccount handles an admin lock.
// @Summary     Lock account
// @Tags        admin-security
// @Accept      json
// @Produce     json
// @Param       id path string true "User ID"
// @Param       request body LockRequest true "Lock details"
// @Success     200 {object} SuccessResponse
// @Failure     400 {object} ErrorResponse "Reason too short or invalid duration"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/security/users/{id}/lock [post]
func (h *SecurityHandler) LockAccount(c *gin.Context) {
	p, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	if err := h.securityService.Lock(c.Request.Context(), userID, req.Reason, req.Permanent, req.Duration); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(p.ID, services.AuditLockAccount, userID, c.ClientIP(), map[string]interface{}{
		"reason":    req.Reason,
		"permanent": req.Permanent,
		"duration":  req.Duration,
	})
	permanent := req.Permanent
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Permanent: &permanent})
}

// UnlockAccount clears every lock on the account.
// @Summary     Unlock account
// @Tags        admin-security
// @Produce     json
// @Param       id path string true "User ID"
// @Success     200 {object} SuccessResponse
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/security/users/{id}/unlock [post]
func (h *SecurityHandler) UnlockAccount(c *gin.Context) {
	h.simpleAction(c, services.AuditUnlockAccount, h.securityService.Unlock)
}

// ResetAttempts zeroes the failed-login counter.
// @Summary     Reset login attempts
// @Tags        admin-security
// @Produce     json
// @Param       id path string true "User ID"
// @Success     200 {object} SuccessResponse
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/security/users/{id}/reset-attempts [post]
func (h *SecurityHandler) ResetAttempts(c *gin.Context) {
	h.simpleAction(c, services.AuditResetAttempts, h.securityService.ResetAttempts)
}

// GetStatus returns the stored security state of a user.
// @Summary     Account security status
// @Tags        admin-security
// @Produce     json
// @Param       id path string true "User ID"
// @Success     200 {object} services.SecurityStatus
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/security/users/{id} [get]
func (h *SecurityHandler) GetStatus(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.securityService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListLocked lists currently locked accounts.
// @Summary     Locked accounts
// @Tags        admin-security
// @Produce     json
// @Success     200 {object} map[string][]services.LockedAccount
// @Router      /admin/security/locked [get]
func (h *SecurityHandler) ListLocked(c *gin.Context) {
	locked, err := h.securityService.ListLocked(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": locked})
}

// GetStats returns aggregate lock and login counters.
// @Summary     Security statistics
// @Tags        admin-security
// @Produce     json
// @Success     200 {object} services.SecurityStats
// @Router      /admin/security/stats [get]
func (h *SecurityHandler) GetStats(c *gin.Context) {
	stats, err := h.securityService.Stats(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// simpleAction runs a body-less admin action on the user in the path and audits it.
func (h *SecurityHandler) simpleAction(c *gin.Context, action string, run func(ctx context.Context, userID string) error) {
	p, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := run(c.Request.Context(), userID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(p.ID, action, userID, c.ClientIP(), nil)
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
