package services

import (
	"context"
	"strings"

	"github.com/homeswift/homeswift-api/models"
	"gorm.io/gorm"
)

// ReviewService records ratings between the parties of a job
type ReviewService struct {
	db    *gorm.DB
	trust TrustScorer
	notifier
}

// CreateReviewInput is a rating for the other party of a job
type CreateReviewInput struct {
	JobID   uint   `json:"job_id" validate:"required"`
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment"`
}

// ReviewResult is a stored review with the outcome of its follow-ups
type ReviewResult struct {
	Review      *models.Review
	SideEffects SideEffects
}

// CreateReview stores a review. Reviews open once either party confirmed completion, and the
// author side is decided strictly by the caller's stored email.
func (s *ReviewService) CreateReview(ctx context.Context, actor Actor, in CreateReviewInput) (*ReviewResult, error) {
	if in.JobID == 0 {
		return nil, NewValidationError("VALIDATION_ERROR", "job_id is required").With("field", "job_id")
	}

	var job models.ServiceRequest
	if err := s.db.WithContext(ctx).First(&job, in.JobID).Error; err != nil {
		return nil, notFoundOr(err, "REQUEST_NOT_FOUND", "Service request not found")
	}
	if !job.OneConfirmed() && job.Status != models.RequestCompleted {
		return nil, NewValidationError("REVIEW_NOT_ALLOWED", "Reviews open once completion has been confirmed").
			With("currentStatus", job.Status)
	}

	var reviewer models.User
	if err := s.db.WithContext(ctx).First(&reviewer, actor.UserID).Error; err != nil {
		return nil, notFoundOr(err, "USER_NOT_FOUND", "User profile not found")
	}

	var revieweeID uint
	side := job.PartyRole(reviewer.Email)
	switch side {
	case models.RoleCustomer:
		if !job.IsAssigned() {
			return nil, NewValidationError("PROVIDER_NOT_ASSIGNED", "The job has no provider to review")
		}
		revieweeID = *job.AssignedProviderID
	case models.RoleProvider:
		revieweeID = job.CustomerID
	default:
		return nil, NewForbiddenError("NOT_A_PARTY", "Only the customer or the assigned provider can review this job")
	}

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	review := &models.Review{
		JobID:         job.ID,
		ReviewedBy:    side,
		ReviewerID:    reviewer.ID,
		ReviewerEmail: reviewer.Email,
		RevieweeID:    revieweeID,
		Rating:        in.Rating,
		Comment:       strings.TrimSpace(in.Comment),
	}
	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflictError("DUPLICATE_REVIEW", "The %s has already reviewed this job", side)
		}
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	var effects SideEffects
	if side == models.RoleCustomer {
		recomputeTrust(ctx, s.trust, &effects, &revieweeID)
	}
	s.publish(ctx, &effects, Event{
		Type:       EventReviewCreated,
		ResourceID: review.ID,
		RequestID:  job.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"rating": review.Rating, "reviewed_by": side},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "review.create", "review", review.ID, map[string]interface{}{
		"job_id": job.ID,
	}))

	return &ReviewResult{Review: review, SideEffects: effects}, nil
}

// ListReviewsFilter narrows ListReviews. ProviderID selects customer-authored reviews of that provider.
type ListReviewsFilter struct {
	JobID      uint
	ProviderID uint
}

// ListReviews returns reviews, newest first
func (s *ReviewService) ListReviews(ctx context.Context, filter ListReviewsFilter) ([]models.Review, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if filter.JobID != 0 {
		q = q.Where("job_id = ?", filter.JobID)
	}
	if filter.ProviderID != 0 {
		q = q.Where("reviewee_id = ? AND reviewed_by = ?", filter.ProviderID, models.RoleCustomer)
	}

	var reviews []models.Review
	if err := q.Find(&reviews).Error; err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}
	return reviews, nil
}
