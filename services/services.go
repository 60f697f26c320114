package services

import (
	"context"

	"github.com/homeswift/homeswift-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Dependencies are the collaborators shared by the domain services
type Dependencies struct {
	DB         *gorm.DB
	Email      EmailSender
	Events     EventPublisher
	Audit      AuditLogger
	Proofs     ProofStorage
	CalloutFee decimal.Decimal
}

// Services bundles every domain service wired to the same dependencies
type Services struct {
	Pricing   *PricingService
	Trust     *TrustScoreService
	Requests  *RequestService
	Payments  *PaymentService
	Reviews   *ReviewService
	Disputes  *DisputeService
	Providers *ProviderService
	Users     *UserService
}

// New wires the domain services. Missing collaborators fall back to logging or no-op versions.
func New(deps Dependencies) *Services {
	if deps.Email == nil {
		deps.Email = LogEmailService{}
	}
	if deps.Events == nil {
		deps.Events = NoopEventPublisher{}
	}
	if deps.Audit == nil {
		deps.Audit = NewGormAuditLogger(deps.DB)
	}

	n := notifier{email: deps.Email, events: deps.Events, audit: deps.Audit}
	pricing := NewPricingService(deps.DB)
	trust := NewTrustScoreService(deps.DB)
	payments := &PaymentService{db: deps.DB, proofs: deps.Proofs, trust: trust, notifier: n}

	providers := &ProviderService{db: deps.DB, trust: trust, notifier: n}

	return &Services{
		Pricing:  pricing,
		Trust:    trust,
		Payments: payments,
		Requests: &RequestService{
			db:         deps.DB,
			catalog:    pricing,
			trust:      trust,
			escrow:     payments,
			calloutFee: deps.CalloutFee,
			notifier:   n,
		},
		Reviews:   &ReviewService{db: deps.DB, trust: trust, notifier: n},
		Disputes:  &DisputeService{db: deps.DB, trust: trust, notifier: n},
		Providers: providers,
		Users:     &UserService{db: deps.DB},
	}
}

// notifier runs the best-effort follow-ups shared by every write
type notifier struct {
	email  EmailSender
	events EventPublisher
	audit  AuditLogger
}

func (n notifier) sendEmail(effects *SideEffects, name string, msg EmailMessage) {
	if msg.To == "" {
		return
	}
	effects.Run(name, func() error {
		return emailErr(n.email.SendEmail(msg))
	})
}

func (n notifier) publish(ctx context.Context, effects *SideEffects, event Event) {
	effects.Run("event.publish", func() error {
		return n.events.Publish(ctx, event)
	})
}

func (n notifier) logAudit(ctx context.Context, effects *SideEffects, event models.AuditEvent) {
	effects.Run("audit.log", func() error {
		return n.audit.LogAuditEvent(ctx, event)
	})
}
