package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the escrow state of a Payment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentInEscrow PaymentStatus = "in_escrow"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
)

// Accepted payment methods
const (
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodCash         = "cash"
	MethodMobileMoney  = "mobile_money"
)

// IsValidPaymentMethod reports whether method is accepted
func IsValidPaymentMethod(method string) bool {
	switch method {
	case MethodCard, MethodBankTransfer, MethodCash, MethodMobileMoney:
		return true
	}
	return false
}

// IsTerminal reports whether the funds have left escrow
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentReleased || s == PaymentRefunded
}

// paymentTransitions maps (from, to) to whether an admin is required
var paymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending: {
		PaymentInEscrow: true,
		PaymentRefunded: true,
	},
	PaymentInEscrow: {
		PaymentReleased: false,
		PaymentRefunded: true,
	},
}

// TransitionCheck is the outcome of ValidateTransition
type TransitionCheck struct {
	Valid         bool   `json:"valid"`
	RequiresAdmin bool   `json:"requires_admin"`
	Code          string `json:"code,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// ValidateTransition checks a payment status change. A move that does not exist is reported
// as INVALID_TRANSITION; an existing move attempted without admin rights as ADMIN_REQUIRED.
func ValidateTransition(current, target PaymentStatus, isAdmin bool) TransitionCheck {
	adminRequired, ok := paymentTransitions[current][target]
	if !ok {
		return TransitionCheck{
			Code:   CodeInvalidTransition,
			Reason: fmt.Sprintf("invalid transition: payment cannot move from %s to %s", current, target),
		}
	}
	if adminRequired && !isAdmin {
		return TransitionCheck{
			RequiresAdmin: true,
			Code:          CodeAdminRequired,
			Reason:        fmt.Sprintf("moving payment from %s to %s requires admin privileges", current, target),
		}
	}
	return TransitionCheck{Valid: true, RequiresAdmin: adminRequired}
}

// Payment represents funds held against a ServiceRequest
type Payment struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	JobID          uint            `gorm:"not null;index" json:"job_id"` // ServiceRequest.ID
	CustomerID     uint            `gorm:"not null;index" json:"customer_id"`
	ProviderID     *uint           `gorm:"index" json:"provider_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	ProviderPayout decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"provider_payout"`
	Commission     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"commission"`
	PaymentMethod  string          `gorm:"not null" json:"payment_method"`
	ProofKey       *string         `json:"proof_key,omitempty"`          // object storage key of the uploaded proof
	ProofURL       *string         `gorm:"-" json:"proof_url,omitempty"` // computed, presigned
	Status         PaymentStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CustomerPaidAt *time.Time      `json:"customer_paid_at,omitempty"`
	VerifiedBy     string          `json:"verified_by,omitempty"`
	ReleasedAt     *time.Time      `json:"released_at,omitempty"`
	ReleasedBy     string          `json:"released_by,omitempty"`
	RefundReason   string          `gorm:"type:text" json:"refund_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
