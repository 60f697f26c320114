package models

import "time"

// DisputeStatus is the handling state of a Dispute
type DisputeStatus string

const (
	DisputePending   DisputeStatus = "pending"
	DisputeInReview  DisputeStatus = "in_review"
	DisputeResolved  DisputeStatus = "resolved"
	DisputeDismissed DisputeStatus = "dismissed"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputePending:  {DisputeInReview, DisputeResolved, DisputeDismissed},
	DisputeInReview: {DisputeResolved, DisputeDismissed},
}

// ParseDisputeStatus converts user input into a known status
func ParseDisputeStatus(raw string) (DisputeStatus, bool) {
	switch s := DisputeStatus(raw); s {
	case DisputePending, DisputeInReview, DisputeResolved, DisputeDismissed:
		return s, true
	}
	return "", false
}

// IsActive reports whether the dispute still blocks a new one on the same job
func (s DisputeStatus) IsActive() bool {
	return s == DisputePending || s == DisputeInReview
}

// IsClosed reports whether an admin has closed the dispute
func (s DisputeStatus) IsClosed() bool {
	return s == DisputeResolved || s == DisputeDismissed
}

// CanTransitionDispute reports whether a dispute may move from one status to another
func CanTransitionDispute(from, to DisputeStatus) bool {
	for _, t := range disputeTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Dispute is a complaint raised by one party of a job
type Dispute struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	JobID       uint          `gorm:"not null;index" json:"job_id"`
	CustomerID  uint          `gorm:"not null;index" json:"customer_id"`
	ProviderID  uint          `gorm:"not null;index" json:"provider_id"`
	RaisedBy    uint          `gorm:"not null" json:"raised_by"`
	RaisedRole  string        `gorm:"type:varchar(20);not null" json:"raised_role"`
	Reason      string        `gorm:"not null" json:"reason"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Status      DisputeStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Resolution  string        `gorm:"type:text" json:"resolution,omitempty"`
	ResolvedBy  string        `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName specifies the table name for the Dispute model
func (Dispute) TableName() string {
	return "disputes"
}
