package models

import "time"

// TrustScore is the cached composite reliability score of a provider.
// Rows are always rewritten from source data, never edited by hand.
type TrustScore struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ProviderID        uint      `gorm:"uniqueIndex;not null" json:"provider_id"`
	ReliabilityScore  float64   `gorm:"not null" json:"reliability_score"`
	CompletionRate    float64   `gorm:"not null" json:"completion_rate"`
	CancellationRate  float64   `gorm:"not null" json:"cancellation_rate"`
	AverageRating     float64   `gorm:"not null" json:"average_rating"`
	VerificationLevel int       `gorm:"not null" json:"verification_level"`
	Score             float64   `gorm:"column:trust_score;not null" json:"trust_score"`
	TotalJobs         int       `gorm:"not null" json:"total_jobs"`
	CompletedJobs     int       `gorm:"not null" json:"completed_jobs"`
	CancelledJobs     int       `gorm:"not null" json:"cancelled_jobs"`
	OnTimeJobs        int       `gorm:"not null" json:"on_time_jobs"`
	TotalReviews      int       `gorm:"not null" json:"total_reviews"`
	CalculatedAt      time.Time `json:"calculated_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for the TrustScore model
func (TrustScore) TableName() string {
	return "trust_scores"
}
