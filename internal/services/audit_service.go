package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"coffeeshop/internal/logger"
	"coffeeshop/internal/models"
)

// Audit actions.
const (
	AuditLockAccount   = "LOCK_ACCOUNT"
	AuditUnlockAccount = "UNLOCK_ACCOUNT"
	AuditResetAttempts = "RESET_LOGIN_ATTEMPTS"
	AuditChangeRole    = "CHANGE_ROLE"
	AuditDeleteUser    = "DELETE_USER"
)

// auditService handles audit log recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an admin action. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(actorID, action, targetID, ipAddress string, changes map[string]any) {
	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		IPAddress: ipAddress,
		Changes:   changesJSON,
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"actor_id", actorID,
			"action", action,
			"target_id", targetID,
		)
	}
}
