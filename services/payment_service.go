package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/homeswift/homeswift-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var openPaymentStatuses = []models.PaymentStatus{models.PaymentPending, models.PaymentInEscrow}

// PaymentService moves payments through pending, in_escrow, released and refunded
type PaymentService struct {
	db     *gorm.DB
	proofs ProofStorage
	trust  TrustScorer
	notifier
}

// CreatePaymentInput is a customer's payment for a job
type CreatePaymentInput struct {
	JobID         uint                  `json:"job_id" form:"job_id" validate:"required"`
	PaymentMethod string                `json:"payment_method" form:"payment_method" validate:"required"`
	Proof         *multipart.FileHeader `json:"-" form:"-" validate:"-"`
}

// PaymentResult is a payment after a write, with the outcome of its follow-ups
type PaymentResult struct {
	Payment     *models.Payment
	SideEffects SideEffects
}

// CreatePayment records the customer's payment for a job, copying the amounts from the booking totals
func (s *PaymentService) CreatePayment(ctx context.Context, actor Actor, in CreatePaymentInput) (*PaymentResult, error) {
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !models.IsValidPaymentMethod(in.PaymentMethod) {
		return nil, NewValidationError("INVALID_PAYMENT_METHOD",
			"payment_method must be one of: card, bank_transfer, cash, mobile_money").With("field", "payment_method")
	}

	var job models.ServiceRequest
	if err := s.db.WithContext(ctx).First(&job, in.JobID).Error; err != nil {
		return nil, notFoundOr(err, "REQUEST_NOT_FOUND", "Service request not found")
	}
	if job.CustomerID != actor.UserID {
		return nil, NewForbiddenError("NOT_A_PARTY", "Only the customer of the job can pay for it")
	}
	if job.Status == models.RequestCancelled {
		return nil, NewConflictError("JOB_CANCELLED", "Cannot pay for a cancelled request").With("currentStatus", job.Status)
	}
	if open, err := s.openPayment(ctx, s.db, job.ID); err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	} else if open != nil {
		return nil, paymentInProgress(open)
	}

	var proofKey *string
	if in.Proof != nil {
		if s.proofs == nil {
			return nil, NewValidationError("PROOF_UPLOAD_DISABLED", "Proof uploads are not configured")
		}
		key, err := s.proofs.UploadProof(ctx, job.ID, in.Proof)
		if err != nil {
			var svcErr *ServiceError
			if errors.As(err, &svcErr) {
				return nil, svcErr
			}
			return nil, NewInternalError("STORAGE_ERROR", err)
		}
		proofKey = &key
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		JobID:          job.ID,
		CustomerID:     job.CustomerID,
		ProviderID:     job.AssignedProviderID,
		Amount:         job.CustomerPaid,
		ProviderPayout: job.ProviderPayout,
		Commission:     job.CommissionEarned,
		PaymentMethod:  in.PaymentMethod,
		ProofKey:       proofKey,
		Status:         models.PaymentPending,
		CustomerPaidAt: &now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := s.openPayment(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return paymentInProgress(open)
		}
		return tx.Create(payment).Error
	})
	if err != nil {
		if proofKey != nil {
			if delErr := s.proofs.DeleteProof(ctx, *proofKey); delErr != nil {
				log.Warn().Err(delErr).Str("proof_key", *proofKey).Msg("failed to remove orphaned proof")
			}
		}
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	log.Info().Uint("payment_id", payment.ID).Uint("job_id", job.ID).
		Str("amount", payment.Amount.StringFixed(2)).Msg("payment created")

	var effects SideEffects
	s.publish(ctx, &effects, Event{
		Type:       EventPaymentCreated,
		ResourceID: payment.ID,
		RequestID:  job.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"amount": payment.Amount.StringFixed(2), "method": payment.PaymentMethod},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "payment.create", "payment", payment.ID, map[string]interface{}{
		"job_id": job.ID,
	}))

	return &PaymentResult{Payment: payment, SideEffects: effects}, nil
}

func paymentInProgress(open *models.Payment) *ServiceError {
	return NewConflictError("PAYMENT_IN_PROGRESS", "The job already has a %s payment", open.Status).
		With("paymentId", open.ID).
		With("currentStatus", open.Status)
}

func (s *PaymentService) openPayment(ctx context.Context, db *gorm.DB, jobID uint) (*models.Payment, error) {
	var payment models.Payment
	err := db.WithContext(ctx).Where("job_id = ? AND status IN ?", jobID, openPaymentStatuses).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment returns a payment with a presigned proof URL. Visible to the job's parties and admins.
func (s *PaymentService) GetPayment(ctx context.Context, actor Actor, id uint) (*models.Payment, error) {
	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	isParty := payment.CustomerID == actor.UserID ||
		(payment.ProviderID != nil && *payment.ProviderID == actor.UserID)
	if !actor.IsAdmin() && !isParty {
		return nil, NewForbiddenError("NOT_A_PARTY", "You do not have access to this payment")
	}

	s.attachProofURL(ctx, payment)
	return payment, nil
}

// ListPayments returns the payments of a job, newest first. Zero lists every payment.
func (s *PaymentService) ListPayments(ctx context.Context, jobID uint) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if jobID != 0 {
		q = q.Where("job_id = ?", jobID)
	}

	var payments []models.Payment
	if err := q.Find(&payments).Error; err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}
	for i := range payments {
		s.attachProofURL(ctx, &payments[i])
	}
	return payments, nil
}

func (s *PaymentService) attachProofURL(ctx context.Context, payment *models.Payment) {
	if payment.ProofKey == nil || s.proofs == nil {
		return
	}
	url, err := s.proofs.ProofURL(ctx, *payment.ProofKey)
	if err != nil {
		log.Warn().Err(err).Uint("payment_id", payment.ID).Msg("failed to presign proof")
		return
	}
	payment.ProofURL = &url
}

// VerifyPayment confirms the customer's funds arrived and places them in escrow
func (s *PaymentService) VerifyPayment(ctx context.Context, actor Actor, id uint) (*PaymentResult, error) {
	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(payment, models.PaymentInEscrow, actor); err != nil {
		return nil, err
	}

	err = s.transition(ctx, payment, models.PaymentInEscrow, map[string]interface{}{
		"verified_by": actor.Label(),
	}, nil)
	if err != nil {
		return nil, err
	}

	return s.afterTransition(ctx, actor, id, payment.Status, nil)
}

// ReleasePayment pays the held funds out to the provider
func (s *PaymentService) ReleasePayment(ctx context.Context, actor Actor, id uint) (*PaymentResult, error) {
	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.release(ctx, actor, payment)
}

func (s *PaymentService) release(ctx context.Context, actor Actor, payment *models.Payment) (*PaymentResult, error) {
	if err := checkTransition(payment, models.PaymentReleased, actor); err != nil {
		return nil, err
	}

	from := payment.Status
	err := s.transition(ctx, payment, models.PaymentReleased, map[string]interface{}{
		"released_at": time.Now().UTC(),
		"released_by": actor.Label(),
	}, func(tx *gorm.DB) error {
		return tx.Model(&models.ServiceRequest{}).Where("id = ?", payment.JobID).
			Update("provider_payment_made", true).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("payment_id", payment.ID).Uint("job_id", payment.JobID).Str("released_by", actor.Label()).Msg("payment released")
	return s.afterTransition(ctx, actor, payment.ID, from, nil)
}

// RefundPayment returns the funds to the customer and cancels the request
func (s *PaymentService) RefundPayment(ctx context.Context, actor Actor, id uint, reason string) (*PaymentResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewValidationError("VALIDATION_ERROR", "reason is required").With("field", "reason")
	}

	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(payment, models.PaymentRefunded, actor); err != nil {
		return nil, err
	}

	from := payment.Status
	err = s.transition(ctx, payment, models.PaymentRefunded, map[string]interface{}{
		"released_at":   time.Now().UTC(),
		"released_by":   actor.Label(),
		"refund_reason": reason,
	}, func(tx *gorm.DB) error {
		var job models.ServiceRequest
		if err := tx.First(&job, payment.JobID).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"admin_notes": appendNote(job.AdminNotes, fmt.Sprintf("Refund (payment %d): %s", payment.ID, reason)),
			"version":     gorm.Expr("version + 1"),
		}
		cancelled := models.ValidateRequestTransition(job.Status, models.RequestCancelled, models.RoleSystem).Allowed
		if cancelled {
			updates["status"] = models.RequestCancelled
		}
		if err := tx.Model(&models.ServiceRequest{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
			return err
		}
		to := job.Status
		if cancelled {
			to = models.RequestCancelled
		}
		return tx.Create(requestEvent(job.ID, SystemActor, "refunded", job.Status, to, map[string]interface{}{
			"payment_id":  payment.ID,
			"reason":      reason,
			"refunded_by": actor.Label(),
		})).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("payment_id", payment.ID).Uint("job_id", payment.JobID).Msg("payment refunded")
	return s.afterTransition(ctx, actor, payment.ID, from, func(effects *SideEffects) {
		providerID := payment.ProviderID
		if providerID == nil {
			var job models.ServiceRequest
			if err := s.db.WithContext(ctx).Select("assigned_provider_id").First(&job, payment.JobID).Error; err == nil {
				providerID = job.AssignedProviderID
			}
		}
		recomputeTrust(ctx, s.trust, effects, providerID)
	})
}

// AutoRelease releases the job's in_escrow payment as the system. No such payment is a no-op.
func (s *PaymentService) AutoRelease(ctx context.Context, jobID uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Where("job_id = ? AND status = ?", jobID, models.PaymentInEscrow).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debug().Uint("job_id", jobID).Msg("no escrowed payment to release")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find escrowed payment: %w", err)
	}

	result, err := s.release(ctx, SystemActor, &payment)
	if err != nil {
		return nil, err
	}
	return result.Payment, nil
}

func checkTransition(payment *models.Payment, target models.PaymentStatus, actor Actor) error {
	check := models.ValidateTransition(payment.Status, target, actor.IsAdmin())
	if check.Valid {
		return nil
	}
	if check.Code == models.CodeAdminRequired {
		return NewForbiddenError(check.Code, "%s", check.Reason).With("currentStatus", payment.Status)
	}
	return NewConflictError(check.Code, "%s", check.Reason).With("currentStatus", payment.Status)
}

// transition moves payment to target with a write conditioned on its current status.
// extra runs in the same transaction for the linked request row.
func (s *PaymentService) transition(ctx context.Context, payment *models.Payment, target models.PaymentStatus, fields map[string]interface{}, extra func(tx *gorm.DB) error) error {
	fields["status"] = target

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).Where("id = ? AND status = ?", payment.ID, payment.Status).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if errors.Is(err, errLostRace) {
		current, loadErr := s.load(ctx, payment.ID)
		if loadErr != nil {
			return loadErr
		}
		return NewConflictError("PAYMENT_STATUS_CHANGED", "Payment moved to %s concurrently", current.Status).
			With("currentStatus", current.Status)
	}
	if err != nil {
		return NewInternalError("DATABASE_ERROR", err)
	}
	return nil
}

func (s *PaymentService) afterTransition(ctx context.Context, actor Actor, id uint, from models.PaymentStatus, extra func(*SideEffects)) (*PaymentResult, error) {
	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var effects SideEffects
	if extra != nil {
		extra(&effects)
	}
	s.publish(ctx, &effects, Event{
		Type:       EventPaymentStatusChanged,
		ResourceID: payment.ID,
		Actor:      actor.Label(),
		Data: map[string]interface{}{
			"job_id":      payment.JobID,
			"from_status": from,
			"to_status":   payment.Status,
		},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "payment."+string(payment.Status), "payment", payment.ID, map[string]interface{}{
		"job_id":      payment.JobID,
		"from_status": string(from),
	}))

	return &PaymentResult{Payment: payment, SideEffects: effects}, nil
}

func (s *PaymentService) load(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, notFoundOr(err, "PAYMENT_NOT_FOUND", "Payment not found")
	}
	return &payment, nil
}

func appendNote(notes, line string) string {
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}
