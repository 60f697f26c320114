package services

import (
	"context"
	"fmt"
	"time"

	"github.com/homeswift/homeswift-api/models"
	"gorm.io/gorm"
)

// AuditLogger records security relevant actions
type AuditLogger interface {
	LogAuditEvent(ctx context.Context, event models.AuditEvent) error
}

// GormAuditLogger writes audit events to the audit_events table
type GormAuditLogger struct {
	db *gorm.DB
}

// NewGormAuditLogger creates an audit logger backed by db
func NewGormAuditLogger(db *gorm.DB) *GormAuditLogger {
	return &GormAuditLogger{db: db}
}

// LogAuditEvent stores event, stamping the timestamp if missing
func (l *GormAuditLogger) LogAuditEvent(ctx context.Context, event models.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := l.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to write audit event %s: %w", event.Action, err)
	}
	return nil
}

func auditEvent(actor Actor, action, resourceType string, resourceID uint, details map[string]interface{}) models.AuditEvent {
	return models.AuditEvent{
		Action:       action,
		UserID:       actor.idPtr(),
		ResourceType: resourceType,
		ResourceID:   fmt.Sprintf("%d", resourceID),
		Details:      details,
		IPAddress:    actor.IP,
		Timestamp:    time.Now().UTC(),
	}
}
