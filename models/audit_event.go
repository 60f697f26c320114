package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEvent is one record in the audit sink
type AuditEvent struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Action       string            `gorm:"not null;index" json:"action"`
	UserID       *uint             `gorm:"index" json:"user_id,omitempty"`
	ResourceType string            `gorm:"not null" json:"resource_type"`
	ResourceID   string            `gorm:"index" json:"resource_id,omitempty"`
	Details      datatypes.JSONMap `json:"details,omitempty"`
	IPAddress    string            `json:"ip_address"`
	Timestamp    time.Time         `gorm:"not null;index" json:"timestamp"`
}

// TableName specifies the table name for the AuditEvent model
func (AuditEvent) TableName() string {
	return "audit_events"
}
