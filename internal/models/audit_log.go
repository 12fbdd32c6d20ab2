package models

// AuditLog records administrative actions on user accounts.
type AuditLog struct {
	Base
	ActorID   string `gorm:"type:uuid;not null;index" json:"actor_id"`
	Action    string `gorm:"not null" json:"action"`
	TargetID  string `gorm:"type:uuid;index" json:"target_id"`
	IPAddress string `json:"ip_address"`
	Changes   string `json:"changes,omitempty"`
}
