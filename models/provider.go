package models

import "time"

// Provider verification states
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// ProviderProfile holds the provider-only attributes of a User
type ProviderProfile struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	User               User       `gorm:"foreignKey:UserID" json:"user"`
	ServiceArea        string     `json:"service_area"`
	VerificationStatus string     `gorm:"type:varchar(20);not null;default:'pending'" json:"verification_status"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	VerifiedBy         string     `json:"verified_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the ProviderProfile model
func (ProviderProfile) TableName() string {
	return "provider_profiles"
}

// IsValidVerificationStatus reports whether status is a known verification state
func IsValidVerificationStatus(status string) bool {
	switch status {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// VerificationLevel maps a verification status onto the 0-3 scale the trust score uses.
// A missing profile counts as rejected.
func VerificationLevel(status string) int {
	switch status {
	case VerificationVerified:
		return 3
	case VerificationPending:
		return 1
	default:
		return 0
	}
}
