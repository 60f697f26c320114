package models

import "time"

// Review is a rating one party of a job leaves for the other.
// At most one review per (job, author side).
type Review struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	JobID         uint      `gorm:"not null;uniqueIndex:idx_review_job_author" json:"job_id"`
	ReviewedBy    string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_review_job_author" json:"reviewed_by"` // customer or provider
	ReviewerID    uint      `gorm:"not null;index" json:"reviewer_id"`
	ReviewerEmail string    `gorm:"not null" json:"reviewer_email"`
	RevieweeID    uint      `gorm:"not null;index" json:"reviewee_id"`
	Rating        int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment       string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Review model
func (Review) TableName() string {
	return "reviews"
}
