package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/homeswift/homeswift-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var activeDisputeStatuses = []models.DisputeStatus{models.DisputePending, models.DisputeInReview}

// DisputeService records complaints between the parties of a job and their handling
type DisputeService struct {
	db    *gorm.DB
	trust TrustScorer
	notifier
}

// CreateDisputeInput is a complaint about a job
type CreateDisputeInput struct {
	JobID       uint   `json:"job_id" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
	Description string `json:"description"`
}

// UpdateDisputeInput is an admin decision on a dispute
type UpdateDisputeInput struct {
	Status     string `json:"status" validate:"required"`
	Resolution string `json:"resolution"`
}

// DisputeResult is a dispute after a write, with the outcome of its follow-ups
type DisputeResult struct {
	Dispute     *models.Dispute
	SideEffects SideEffects
}

// CreateDispute opens a dispute. Only one active dispute may exist per job.
func (s *DisputeService) CreateDispute(ctx context.Context, actor Actor, in CreateDisputeInput) (*DisputeResult, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var job models.ServiceRequest
	if err := s.db.WithContext(ctx).First(&job, in.JobID).Error; err != nil {
		return nil, notFoundOr(err, "REQUEST_NOT_FOUND", "Service request not found")
	}
	if !job.IsAssigned() {
		return nil, NewValidationError("PROVIDER_NOT_ASSIGNED", "Disputes need an assigned provider").
			With("currentStatus", job.Status)
	}

	var role string
	switch {
	case job.CustomerID == actor.UserID:
		role = models.RoleCustomer
	case job.IsAssignedTo(actor.UserID):
		role = models.RoleProvider
	default:
		return nil, NewForbiddenError("NOT_A_PARTY", "Only the customer or the assigned provider can raise a dispute")
	}

	dispute := &models.Dispute{
		JobID:       job.ID,
		CustomerID:  job.CustomerID,
		ProviderID:  *job.AssignedProviderID,
		RaisedBy:    actor.UserID,
		RaisedRole:  role,
		Reason:      in.Reason,
		Description: in.Description,
		Status:      models.DisputePending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.Dispute{}).
			Where("job_id = ? AND status IN ?", job.ID, activeDisputeStatuses).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return NewConflictError("ACTIVE_DISPUTE_EXISTS", "This job already has an open dispute")
		}
		return tx.Create(dispute).Error
	})
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	log.Info().Uint("dispute_id", dispute.ID).Uint("job_id", job.ID).Str("raised_role", role).Msg("dispute raised")

	var effects SideEffects
	s.publish(ctx, &effects, Event{
		Type:       EventDisputeCreated,
		ResourceID: dispute.ID,
		RequestID:  job.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"raised_role": role},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "dispute.create", "dispute", dispute.ID, map[string]interface{}{
		"job_id": job.ID,
	}))

	return &DisputeResult{Dispute: dispute, SideEffects: effects}, nil
}

// ListDisputes returns every dispute for admins and the disputes of the caller's jobs otherwise
func (s *DisputeService) ListDisputes(ctx context.Context, actor Actor) ([]models.Dispute, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if !actor.IsAdmin() {
		q = q.Where("customer_id = ? OR provider_id = ?", actor.UserID, actor.UserID)
	}

	var disputes []models.Dispute
	if err := q.Find(&disputes).Error; err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}
	return disputes, nil
}

// UpdateDispute moves a dispute forward. Closing it refreshes the provider's trust score.
func (s *DisputeService) UpdateDispute(ctx context.Context, actor Actor, id uint, in UpdateDisputeInput) (*DisputeResult, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("ADMIN_REQUIRED", "Only admins can update disputes")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	target, ok := models.ParseDisputeStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !ok {
		return nil, NewValidationError("INVALID_STATUS", "Unknown dispute status %q", in.Status)
	}

	dispute, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransitionDispute(dispute.Status, target) {
		return nil, NewConflictError("INVALID_TRANSITION", "Cannot move dispute from %s to %s", dispute.Status, target).
			With("currentStatus", dispute.Status)
	}

	updates := map[string]interface{}{"status": target}
	if res := strings.TrimSpace(in.Resolution); res != "" {
		updates["resolution"] = res
	}
	if target.IsClosed() {
		updates["resolved_by"] = actor.Label()
		updates["resolved_at"] = time.Now().UTC()
	}

	res := s.db.WithContext(ctx).Model(&models.Dispute{}).Where("id = ? AND status = ?", dispute.ID, dispute.Status).Updates(updates)
	if res.Error != nil {
		return nil, NewInternalError("DATABASE_ERROR", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, NewConflictError("DISPUTE_STATUS_CHANGED", "Dispute moved to %s concurrently", current.Status).
			With("currentStatus", current.Status)
	}

	from := dispute.Status
	dispute, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var effects SideEffects
	if target.IsClosed() {
		providerID := dispute.ProviderID
		recomputeTrust(ctx, s.trust, &effects, &providerID)
	}
	s.publish(ctx, &effects, Event{
		Type:       EventDisputeUpdated,
		ResourceID: dispute.ID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"from_status": from, "to_status": dispute.Status},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "dispute.update", "dispute", dispute.ID, map[string]interface{}{
		"from_status": string(from),
		"to_status":   string(dispute.Status),
	}))

	return &DisputeResult{Dispute: dispute, SideEffects: effects}, nil
}

func (s *DisputeService) load(ctx context.Context, id uint) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := s.db.WithContext(ctx).First(&dispute, id).Error; err != nil {
		return nil, notFoundOr(err, "DISPUTE_NOT_FOUND", "Dispute not found")
	}
	return &dispute, nil
}
