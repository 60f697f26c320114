package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ServiceRequest represents one booking and its lifecycle
type ServiceRequest struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	RequestID       string `gorm:"uniqueIndex;not null" json:"request_id"` // public booking reference
	CustomerID      uint   `gorm:"not null;index" json:"customer_id"`
	CustomerName    string `gorm:"not null" json:"customer_name"`
	CustomerEmail   string `gorm:"not null;index" json:"customer_email"`
	CustomerPhone   string `gorm:"not null" json:"customer_phone"`
	CustomerAddress string `gorm:"type:text;not null" json:"customer_address"`
	PreferredDate   string `gorm:"not null" json:"preferred_date"` // YYYY-MM-DD
	PreferredTime   string `gorm:"not null" json:"preferred_time"`
	Notes           string `gorm:"type:text" json:"notes,omitempty"`

	// Totals are fixed at intake and never recomputed
	CustomerPaid     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"customer_paid"`
	ProviderPayout   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"provider_payout"`
	CommissionEarned decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"commission_earned"`
	CalloutFee       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"callout_fee"`

	Status RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	AssignedProviderID *uint      `gorm:"index" json:"assigned_provider_id"` // set once, by assignment only
	ProviderName       string     `json:"provider_name,omitempty"`
	ProviderPhone      string     `json:"provider_phone,omitempty"`
	ProviderEmail      string     `gorm:"index" json:"provider_email,omitempty"`
	AssignedBy         string     `json:"assigned_by,omitempty"`
	AssignedAt         *time.Time `json:"assigned_at,omitempty"`

	CustomerConfirmedCompletion bool       `gorm:"not null;default:false" json:"customer_confirmed_completion"`
	ProviderConfirmedCompletion bool       `gorm:"not null;default:false" json:"provider_confirmed_completion"`
	CompletedAt                 *time.Time `json:"completed_at,omitempty"`
	ProviderPaymentMade         bool       `gorm:"not null;default:false" json:"provider_payment_made"`
	AdminNotes                  string     `gorm:"type:text" json:"admin_notes,omitempty"`

	// Version is bumped on every status write; writers holding a stale copy lose
	Version uint `gorm:"not null;default:1" json:"version"`

	LineItems []RequestLineItem `gorm:"foreignKey:ServiceRequestID" json:"selected_items"`
	Interests []RequestInterest `gorm:"foreignKey:ServiceRequestID" json:"interested_providers"`
	Events    []RequestEvent    `gorm:"foreignKey:ServiceRequestID" json:"audit_log,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the ServiceRequest model
func (ServiceRequest) TableName() string {
	return "service_requests"
}

// Totals returns the stored money figures
func (r *ServiceRequest) Totals() Totals {
	return Totals{
		CustomerPaid:     r.CustomerPaid,
		ProviderPayout:   r.ProviderPayout,
		CommissionEarned: r.CommissionEarned,
		CalloutFee:       r.CalloutFee,
	}
}

// OneConfirmed reports whether at least one party confirmed completion
func (r *ServiceRequest) OneConfirmed() bool {
	return r.CustomerConfirmedCompletion || r.ProviderConfirmedCompletion
}

// BothConfirmed reports whether customer and provider both confirmed completion
func (r *ServiceRequest) BothConfirmed() bool {
	return r.CustomerConfirmedCompletion && r.ProviderConfirmedCompletion
}

// IsAssigned reports whether a provider holds the job
func (r *ServiceRequest) IsAssigned() bool {
	return r.AssignedProviderID != nil
}

// IsAssignedTo reports whether providerID holds the job
func (r *ServiceRequest) IsAssignedTo(providerID uint) bool {
	return r.AssignedProviderID != nil && *r.AssignedProviderID == providerID
}

// PartyRole returns which side of the job an email belongs to, or "" for neither
func (r *ServiceRequest) PartyRole(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	if strings.EqualFold(r.CustomerEmail, email) {
		return RoleCustomer
	}
	if r.IsAssigned() && strings.EqualFold(r.ProviderEmail, email) {
		return RoleProvider
	}
	return ""
}

// RequestLineItem is one priced entry of a booking, snapshotted at intake
type RequestLineItem struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ServiceRequestID  uint            `gorm:"not null;index" json:"-"`
	Position          int             `gorm:"not null" json:"position"`
	Category          string          `gorm:"not null" json:"category"`
	ServiceType       string          `gorm:"not null" json:"service_type"`
	Quantity          int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	IsWhite           bool            `gorm:"not null;default:false" json:"is_white"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	ColorSurcharge    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"color_surcharge"`
	UnitProviderPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_provider_price"`
	LineCustomerPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"line_customer_price"`
	LineProviderPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"line_provider_price"`
	LineCommission    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"line_commission"`
}

// TableName specifies the table name for the RequestLineItem model
func (RequestLineItem) TableName() string {
	return "request_line_items"
}

// Interest states
const (
	InterestOpen        = "interested"
	InterestSelected    = "selected"
	InterestNotSelected = "not_selected"
)

// RequestInterest is one provider's expression of interest in a request.
// The unique index makes concurrent submissions from different providers independent rows.
type RequestInterest struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ServiceRequestID   uint      `gorm:"not null;uniqueIndex:idx_interest_request_provider" json:"-"`
	ProviderID         uint      `gorm:"not null;uniqueIndex:idx_interest_request_provider" json:"provider_id"`
	ProviderName       string    `json:"provider_name"`
	ProviderEmail      string    `json:"provider_email"`
	ProviderPhone      string    `json:"provider_phone"`
	TrustScore         float64   `json:"trust_score"`
	VerificationStatus string    `json:"verification_status"`
	Status             string    `gorm:"type:varchar(20);not null;default:'interested'" json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName specifies the table name for the RequestInterest model
func (RequestInterest) TableName() string {
	return "request_interests"
}

// RequestEvent is one entry of a request's lifecycle audit log
type RequestEvent struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	ServiceRequestID uint              `gorm:"not null;index" json:"-"`
	Action           string            `gorm:"not null" json:"action"`
	ActorID          *uint             `json:"actor_id,omitempty"`
	ActorRole        string            `json:"actor_role"`
	ActorEmail       string            `json:"actor_email,omitempty"`
	FromStatus       RequestStatus     `gorm:"type:varchar(20)" json:"from_status,omitempty"`
	ToStatus         RequestStatus     `gorm:"type:varchar(20)" json:"to_status,omitempty"`
	Details          datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TableName specifies the table name for the RequestEvent model
func (RequestEvent) TableName() string {
	return "request_events"
}
