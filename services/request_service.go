package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homeswift/homeswift-api/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// errLostRace marks a conditional write that matched no row
var errLostRace = errors.New("conditional write matched no row")

var (
	interestStatuses     = []models.RequestStatus{models.RequestPending, models.RequestBroadcasted, models.RequestInterested}
	confirmableStatuses  = []models.RequestStatus{models.RequestAssigned, models.RequestConfirmed, models.RequestInProgress}
	maxRequestIDAttempts = 3
)

// EscrowReleaser releases a job's held payment once the job completes
type EscrowReleaser interface {
	AutoRelease(ctx context.Context, jobID uint) (*models.Payment, error)
}

// RequestService runs the service request lifecycle
type RequestService struct {
	db         *gorm.DB
	catalog    PricingCatalog
	trust      TrustScorer
	escrow     EscrowReleaser
	calloutFee decimal.Decimal
	notifier
}

// LineItemInput is one requested service in a booking
type LineItemInput struct {
	Category    string `json:"category" validate:"required"`
	ServiceType string `json:"service_type" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
	IsWhite     bool   `json:"is_white"`
}

// CreateRequestInput is the booking a customer submits
type CreateRequestInput struct {
	CustomerName    string          `json:"customer_name" validate:"required"`
	CustomerEmail   string          `json:"customer_email" validate:"required,email"`
	CustomerPhone   string          `json:"customer_phone" validate:"required"`
	CustomerAddress string          `json:"customer_address" validate:"required"`
	PreferredDate   string          `json:"preferred_date" validate:"required,datetime=2006-01-02"`
	PreferredTime   string          `json:"preferred_time" validate:"required"`
	Notes           string          `json:"notes"`
	Items           []LineItemInput `json:"selected_items" validate:"required,min=1,dive"`
}

func (in *CreateRequestInput) normalize() {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.CustomerAddress = strings.TrimSpace(in.CustomerAddress)
	in.PreferredDate = strings.TrimSpace(in.PreferredDate)
	in.PreferredTime = strings.TrimSpace(in.PreferredTime)
	in.Notes = strings.TrimSpace(in.Notes)
	for i := range in.Items {
		in.Items[i].Category = normalizeKey(in.Items[i].Category)
		in.Items[i].ServiceType = normalizeKey(in.Items[i].ServiceType)
	}
}

// RequestResult is a request after a write, with the outcome of its follow-ups
type RequestResult struct {
	Request     *models.ServiceRequest
	SideEffects SideEffects
}

// ConfirmResult is the outcome of a completion confirmation
type ConfirmResult struct {
	Request      *models.ServiceRequest
	Party        string
	OneConfirmed bool
	Completed    bool
	SideEffects  SideEffects
}

// CanRate reports whether reviews are open for the job
func (r *ConfirmResult) CanRate() bool {
	return r.OneConfirmed || r.Completed
}

func newRequestID() string {
	return "HS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateRequest validates and prices a booking and stores it as broadcasted
func (s *RequestService) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (*RequestResult, error) {
	if actor.Role != models.RoleCustomer {
		return nil, NewForbiddenError("CUSTOMER_ONLY", "Only customers can create service requests")
	}

	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	items := make([]models.RequestLineItem, 0, len(in.Items))
	for i, item := range in.Items {
		entry, err := s.catalog.FindPricing(ctx, item.Category, item.ServiceType)
		if errors.Is(err, ErrPricingNotFound) {
			return nil, NewValidationError("UNKNOWN_SERVICE",
				"selected_items[%d]: no pricing for %s / %s", i, item.Category, item.ServiceType).
				With("item_index", i)
		}
		if err != nil {
			return nil, NewInternalError("PRICING_ERROR", err)
		}
		line := entry.PriceLine(entry.Category, entry.ServiceType, item.Quantity, item.IsWhite)
		line.Position = i
		items = append(items, line)
	}

	totals := models.ComputeTotals(items, s.calloutFee)
	req := &models.ServiceRequest{
		CustomerID:       actor.UserID,
		CustomerName:     in.CustomerName,
		CustomerEmail:    in.CustomerEmail,
		CustomerPhone:    in.CustomerPhone,
		CustomerAddress:  in.CustomerAddress,
		PreferredDate:    in.PreferredDate,
		PreferredTime:    in.PreferredTime,
		Notes:            in.Notes,
		CustomerPaid:     totals.CustomerPaid,
		ProviderPayout:   totals.ProviderPayout,
		CommissionEarned: totals.CommissionEarned,
		CalloutFee:       totals.CalloutFee,
		Status:           models.RequestBroadcasted,
		Version:          1,
		LineItems:        items,
		Events: []models.RequestEvent{
			newEvent(actor, "created", "", models.RequestBroadcasted, map[string]interface{}{
				"customer_paid": totals.CustomerPaid.StringFixed(2),
				"items":         len(items),
			}),
		},
	}

	var err error
	for attempt := 0; attempt < maxRequestIDAttempts; attempt++ {
		req.ID = 0
		req.RequestID = newRequestID()
		err = s.db.WithContext(ctx).Create(req).Error
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, NewInternalError("DATABASE_ERROR", fmt.Errorf("failed to create service request: %w", err))
	}

	log.Info().Str("request_id", req.RequestID).Uint("customer_id", actor.UserID).
		Str("customer_paid", req.CustomerPaid.StringFixed(2)).Msg("service request created")

	var effects SideEffects
	s.sendEmail(&effects, "email.booking_received", bookingReceivedEmail(req))
	s.publish(ctx, &effects, Event{
		Type:       EventRequestCreated,
		ResourceID: req.ID,
		RequestID:  req.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"customer_paid": req.CustomerPaid.StringFixed(2)},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "service_request.create", "service_request", req.ID, map[string]interface{}{
		"request_id": req.RequestID,
	}))

	return &RequestResult{Request: req, SideEffects: effects}, nil
}

// GetRequest loads a request by numeric id or public request id, enforcing visibility
func (s *RequestService) GetRequest(ctx context.Context, actor Actor, ref string) (*models.ServiceRequest, error) {
	req, err := s.load(ctx, s.db, ref, true)
	if err != nil {
		return nil, err
	}
	if !canView(actor, req) {
		return nil, NewForbiddenError("NOT_A_PARTY", "You do not have access to this service request")
	}
	return req, nil
}

// ListRequestsFilter narrows ListRequests
type ListRequestsFilter struct {
	Status string
}

// ListRequests returns what the actor may see: everything for admins, own bookings for customers,
// open requests plus own assignments for providers
func (s *RequestService) ListRequests(ctx context.Context, actor Actor, filter ListRequestsFilter) ([]models.ServiceRequest, error) {
	q := s.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at DESC")

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleCustomer:
		q = q.Where("customer_id = ?", actor.UserID)
	case models.RoleProvider:
		q = q.Where("assigned_provider_id = ? OR (assigned_provider_id IS NULL AND status IN ?)", actor.UserID, interestStatuses)
	default:
		return nil, NewForbiddenError("FORBIDDEN", "Role %q cannot list service requests", actor.Role)
	}

	if filter.Status != "" {
		status, ok := models.ParseRequestStatus(filter.Status)
		if !ok {
			return nil, NewValidationError("INVALID_STATUS", "Unknown status %q", filter.Status)
		}
		q = q.Where("status = ?", status)
	}

	var requests []models.ServiceRequest
	if err := q.Find(&requests).Error; err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}
	return requests, nil
}

// ShowInterestInput identifies the interested provider. It defaults to the caller.
type ShowInterestInput struct {
	ProviderID *uint `json:"provider_id"`
}

// ShowInterest records a provider's interest in an open request
func (s *RequestService) ShowInterest(ctx context.Context, actor Actor, ref string, in ShowInterestInput) (*RequestResult, error) {
	if actor.Role != models.RoleProvider {
		return nil, NewForbiddenError("PROVIDER_ONLY", "Only providers can show interest")
	}
	if in.ProviderID != nil && *in.ProviderID != actor.UserID {
		return nil, NewForbiddenError("PROVIDER_MISMATCH", "Providers can only register interest for themselves")
	}

	req, err := s.load(ctx, s.db, ref, true)
	if err != nil {
		return nil, err
	}
	if !req.Status.AcceptsInterest() || req.IsAssigned() {
		return nil, NewConflictError("INTEREST_CLOSED", "Request is %s and no longer accepts interest", req.Status).
			With("currentStatus", req.Status)
	}
	for _, interest := range req.Interests {
		if interest.ProviderID == actor.UserID {
			return nil, NewConflictError("DUPLICATE_INTEREST", "You have already shown interest in this request").
				With("currentStatus", req.Status)
		}
	}

	interest, err := s.interestSnapshot(ctx, req.ID, actor.UserID)
	if err != nil {
		return nil, err
	}

	from := req.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the request row against a concurrent assignment before recording interest
		guard := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND assigned_provider_id IS NULL AND status IN ?", req.ID, interestStatuses).
			Update("updated_at", time.Now().UTC())
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return errLostRace
		}
		if err := tx.Create(interest).Error; err != nil {
			return err
		}

		to := from
		if from != models.RequestInterested {
			if tr := models.ValidateRequestTransition(from, models.RequestInterested, models.RoleProvider); tr.Allowed {
				res := tx.Model(&models.ServiceRequest{}).
					Where("id = ? AND status IN ?", req.ID, []models.RequestStatus{models.RequestPending, models.RequestBroadcasted}).
					Updates(map[string]interface{}{"status": models.RequestInterested, "version": gorm.Expr("version + 1")})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 1 {
					to = models.RequestInterested
				}
			}
		}

		return tx.Create(requestEvent(req.ID, actor, "interest_shown", from, to, map[string]interface{}{
			"provider_id": actor.UserID,
		})).Error
	})
	if errors.Is(err, errLostRace) {
		current, loadErr := s.load(ctx, s.db, ref, false)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, NewConflictError("INTEREST_CLOSED", "Request is %s and no longer accepts interest", current.Status).
			With("currentStatus", current.Status)
	}
	if isUniqueViolation(err) {
		return nil, NewConflictError("DUPLICATE_INTEREST", "You have already shown interest in this request").
			With("currentStatus", req.Status)
	}
	if err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	req, err = s.load(ctx, s.db, strconv.FormatUint(uint64(req.ID), 10), true)
	if err != nil {
		return nil, err
	}

	var effects SideEffects
	s.publish(ctx, &effects, Event{
		Type:       EventInterestShown,
		ResourceID: req.ID,
		RequestID:  req.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"provider_id": actor.UserID},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "service_request.show_interest", "service_request", req.ID, nil))

	return &RequestResult{Request: req, SideEffects: effects}, nil
}

// interestSnapshot captures the provider's contact details, verification and trust score at interest time
func (s *RequestService) interestSnapshot(ctx context.Context, requestID, providerID uint) (*models.RequestInterest, error) {
	provider, err := s.findProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	interest := &models.RequestInterest{
		ServiceRequestID: requestID,
		ProviderID:       provider.ID,
		ProviderName:     provider.Name,
		ProviderEmail:    provider.Email,
		ProviderPhone:    provider.Phone,
		Status:           models.InterestOpen,
	}

	var profile models.ProviderProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", providerID).First(&profile).Error; err == nil {
		interest.VerificationStatus = profile.VerificationStatus
	}
	var score models.TrustScore
	if err := s.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&score).Error; err == nil {
		interest.TrustScore = score.Score
	}

	return interest, nil
}

// AssignProviderInput selects the winning provider
type AssignProviderInput struct {
	ProviderID uint   `json:"provider_id" validate:"required"`
	AdminEmail string `json:"admin_email" validate:"omitempty,email"`
}

// AssignProvider gives the job to one provider. Only the first of concurrent assignments wins;
// the others get ALREADY_ASSIGNED with the winner's id.
func (s *RequestService) AssignProvider(ctx context.Context, actor Actor, ref string, in AssignProviderInput) (*RequestResult, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("ADMIN_REQUIRED", "Only admins can assign providers")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.AdminEmail != "" && !strings.EqualFold(in.AdminEmail, actor.Email) {
		return nil, NewValidationError("ADMIN_EMAIL_MISMATCH", "admin_email does not match the authenticated admin")
	}

	req, err := s.load(ctx, s.db, ref, true)
	if err != nil {
		return nil, err
	}
	if req.IsAssigned() {
		return nil, alreadyAssigned(req)
	}
	if tr := models.ValidateRequestTransition(req.Status, models.RequestAssigned, models.RoleAdmin); !tr.Allowed {
		return nil, NewConflictError(tr.Code, "%s", tr.Reason).With("currentStatus", req.Status)
	}

	provider, err := s.findProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}

	from := req.Status
	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND assigned_provider_id IS NULL AND status IN ?", req.ID, interestStatuses).
			Updates(map[string]interface{}{
				"assigned_provider_id": provider.ID,
				"provider_name":        provider.Name,
				"provider_phone":       provider.Phone,
				"provider_email":       provider.Email,
				"assigned_by":          actor.Label(),
				"assigned_at":          now,
				"status":               models.RequestAssigned,
				"version":              gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}

		// Payments made before assignment learn their provider here.
		if err := tx.Model(&models.Payment{}).
			Where("job_id = ? AND provider_id IS NULL", req.ID).
			Update("provider_id", provider.ID).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.RequestInterest{}).
			Where("service_request_id = ? AND provider_id = ?", req.ID, provider.ID).
			Update("status", models.InterestSelected).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.RequestInterest{}).
			Where("service_request_id = ? AND provider_id <> ?", req.ID, provider.ID).
			Update("status", models.InterestNotSelected).Error; err != nil {
			return err
		}

		return tx.Create(requestEvent(req.ID, actor, "provider_assigned", from, models.RequestAssigned, map[string]interface{}{
			"provider_id":   provider.ID,
			"provider_name": provider.Name,
		})).Error
	})
	if errors.Is(err, errLostRace) {
		current, loadErr := s.load(ctx, s.db, ref, false)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.IsAssigned() {
			return nil, alreadyAssigned(current)
		}
		return nil, NewConflictError("INVALID_TRANSITION", "Request changed to %s before the assignment", current.Status).
			With("currentStatus", current.Status)
	}
	if err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	req, err = s.load(ctx, s.db, ref, true)
	if err != nil {
		return nil, err
	}

	log.Info().Str("request_id", req.RequestID).Uint("provider_id", provider.ID).Msg("provider assigned")

	var effects SideEffects
	s.sendEmail(&effects, "email.provider_assigned", providerAssignedEmail(req))
	s.sendEmail(&effects, "email.customer_assigned", customerAssignedEmail(req))
	for _, interest := range req.Interests {
		if interest.ProviderID == provider.ID {
			continue
		}
		s.sendEmail(&effects, fmt.Sprintf("email.not_selected:%d", interest.ProviderID), notSelectedEmail(req, interest))
	}
	s.publish(ctx, &effects, Event{
		Type:       EventProviderAssigned,
		ResourceID: req.ID,
		RequestID:  req.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"provider_id": provider.ID},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "service_request.assign_provider", "service_request", req.ID, map[string]interface{}{
		"provider_id": provider.ID,
	}))

	return &RequestResult{Request: req, SideEffects: effects}, nil
}

func alreadyAssigned(req *models.ServiceRequest) *ServiceError {
	return NewConflictError("ALREADY_ASSIGNED", "Request is already assigned to another provider").
		With("currentProviderId", *req.AssignedProviderID).
		With("currentStatus", req.Status)
}

// RemoveInterestInput names the provider to drop from the interested list
type RemoveInterestInput struct {
	ProviderID uint `json:"provider_id" validate:"required"`
}

// RemoveInterest drops one interested provider. A request left with no interest goes back to broadcasted.
func (s *RequestService) RemoveInterest(ctx context.Context, actor Actor, ref string, in RemoveInterestInput) (*RequestResult, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("ADMIN_REQUIRED", "Only admins can remove interested providers")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	req, err := s.load(ctx, s.db, ref, false)
	if err != nil {
		return nil, err
	}
	if req.IsAssigned() {
		return nil, alreadyAssigned(req)
	}

	from := req.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("service_request_id = ? AND provider_id = ?", req.ID, in.ProviderID).Delete(&models.RequestInterest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}

		to := from
		if tr := models.ValidateRequestTransition(from, models.RequestBroadcasted, models.RoleAdmin); tr.Allowed {
			remaining := tx.Model(&models.RequestInterest{}).Select("1").Where("service_request_id = ?", req.ID)
			res := tx.Model(&models.ServiceRequest{}).
				Where("id = ? AND status = ? AND assigned_provider_id IS NULL", req.ID, models.RequestInterested).
				Where("NOT EXISTS (?)", remaining).
				Updates(map[string]interface{}{"status": models.RequestBroadcasted, "version": gorm.Expr("version + 1")})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				to = models.RequestBroadcasted
			}
		}

		return tx.Create(requestEvent(req.ID, actor, "interest_removed", from, to, map[string]interface{}{
			"provider_id": in.ProviderID,
		})).Error
	})
	if errors.Is(err, errLostRace) {
		return nil, NewNotFoundError("INTEREST_NOT_FOUND", "Provider %d has not shown interest in this request", in.ProviderID)
	}
	if err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	req, err = s.load(ctx, s.db, ref, true)
	if err != nil {
		return nil, err
	}

	var effects SideEffects
	s.publish(ctx, &effects, Event{
		Type:       EventInterestRemoved,
		ResourceID: req.ID,
		RequestID:  req.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"provider_id": in.ProviderID},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "service_request.remove_interest", "service_request", req.ID, map[string]interface{}{
		"provider_id": in.ProviderID,
	}))

	return &RequestResult{Request: req, SideEffects: effects}, nil
}

// ConfirmCompletion records the caller's side of the completion handshake.
// The second side completes the job and triggers payment release and a trust score refresh.
func (s *RequestService) ConfirmCompletion(ctx context.Context, actor Actor, ref string) (*ConfirmResult, error) {
	req, err := s.load(ctx, s.db, ref, false)
	if err != nil {
		return nil, err
	}

	var party, column string
	var already bool
	switch {
	case req.CustomerID == actor.UserID:
		party, column, already = models.RoleCustomer, "customer_confirmed_completion", req.CustomerConfirmedCompletion
	case req.IsAssignedTo(actor.UserID):
		party, column, already = models.RoleProvider, "provider_confirmed_completion", req.ProviderConfirmedCompletion
	default:
		return nil, NewForbiddenError("NOT_A_PARTY", "Only the customer or the assigned provider can confirm completion")
	}

	if already {
		return nil, alreadyConfirmed(party)
	}
	if !req.Status.AcceptsConfirmation() {
		return nil, NewConflictError("CONFIRMATION_NOT_ALLOWED", "Request is %s and cannot be confirmed", req.Status).
			With("currentStatus", req.Status)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status IN ?", req.ID, confirmableStatuses).
			Where(column+" = ?", false).
			Update(column, true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}
		return tx.Create(requestEvent(req.ID, actor, "completion_confirmed", req.Status, req.Status, map[string]interface{}{
			"party": party,
		})).Error
	})
	if errors.Is(err, errLostRace) {
		current, loadErr := s.load(ctx, s.db, ref, false)
		if loadErr != nil {
			return nil, loadErr
		}
		if (party == models.RoleCustomer && current.CustomerConfirmedCompletion) ||
			(party == models.RoleProvider && current.ProviderConfirmedCompletion) {
			return nil, alreadyConfirmed(party)
		}
		return nil, NewConflictError("CONFIRMATION_NOT_ALLOWED", "Request is %s and cannot be confirmed", current.Status).
			With("currentStatus", current.Status)
	}
	if err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	req, err = s.load(ctx, s.db, ref, false)
	if err != nil {
		return nil, err
	}

	var effects SideEffects
	completed := false
	if req.BothConfirmed() {
		completed, err = s.complete(ctx, req, SystemActor, "dual_confirmation")
		if err != nil {
			return nil, err
		}
	}

	req, err = s.load(ctx, s.db, ref, true)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &effects, Event{
		Type:       EventCompletionConfirmed,
		ResourceID: req.ID,
		RequestID:  req.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"party": party},
	})
	if completed {
		s.afterCompletion(ctx, req, &effects)
		if req, err = s.load(ctx, s.db, ref, true); err != nil {
			return nil, err
		}
	}
	s.logAudit(ctx, &effects, auditEvent(actor, "service_request.confirm_completion", "service_request", req.ID, map[string]interface{}{
		"party": party,
	}))

	return &ConfirmResult{
		Request:      req,
		Party:        party,
		OneConfirmed: req.OneConfirmed(),
		Completed:    req.Status == models.RequestCompleted,
		SideEffects:  effects,
	}, nil
}

func alreadyConfirmed(party string) *ServiceError {
	return NewValidationError("ALREADY_CONFIRMED", "The %s has already confirmed completion", party).With("party", party)
}

// complete flips a confirmable request to completed. It reports false when another
// writer completed or cancelled it first, so only one caller runs the follow-ups.
func (s *RequestService) complete(ctx context.Context, req *models.ServiceRequest, actor Actor, reason string) (bool, error) {
	if tr := models.ValidateRequestTransition(req.Status, models.RequestCompleted, actor.Role); !tr.Allowed {
		if req.Status == models.RequestCompleted {
			return false, nil
		}
		return false, NewConflictError(tr.Code, "%s", tr.Reason).With("currentStatus", req.Status)
	}

	completed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status IN ?", req.ID, confirmableStatuses).
			Updates(map[string]interface{}{
				"status":       models.RequestCompleted,
				"completed_at": time.Now().UTC(),
				"version":      gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		completed = true
		return tx.Create(requestEvent(req.ID, actor, "completed", req.Status, models.RequestCompleted, map[string]interface{}{
			"reason": reason,
		})).Error
	})
	if err != nil {
		return false, NewInternalError("DATABASE_ERROR", err)
	}
	return completed, nil
}

// afterCompletion runs the best-effort follow-ups of a completed job
func (s *RequestService) afterCompletion(ctx context.Context, req *models.ServiceRequest, effects *SideEffects) {
	log.Info().Str("request_id", req.RequestID).Msg("service request completed")

	if s.escrow != nil {
		effects.Run("payment.auto_release", func() error {
			_, err := s.escrow.AutoRelease(ctx, req.ID)
			return err
		})
	}
	recomputeTrust(ctx, s.trust, effects, req.AssignedProviderID)
	s.sendEmail(effects, "email.completed_customer", completionEmail(req, req.CustomerEmail, req.CustomerName))
	s.sendEmail(effects, "email.completed_provider", completionEmail(req, req.ProviderEmail, req.ProviderName))
	s.publish(ctx, effects, Event{
		Type:       EventRequestCompleted,
		ResourceID: req.ID,
		RequestID:  req.RequestID,
		Actor:      models.RoleSystem,
	})
}

// UpdateRequestInput is an admin PATCH. Nil fields are left unchanged.
type UpdateRequestInput struct {
	Status          *string `json:"status"`
	AdminNotes      *string `json:"admin_notes"`
	PreferredDate   *string `json:"preferred_date"`
	PreferredTime   *string `json:"preferred_time"`
	CustomerPhone   *string `json:"customer_phone"`
	CustomerAddress *string `json:"customer_address"`
	Version         *uint   `json:"version"`
}

// UpdateRequest applies an admin edit. Status changes go through the transition table and
// every write is guarded by the version the admin read.
func (s *RequestService) UpdateRequest(ctx context.Context, actor Actor, ref string, in UpdateRequestInput) (*RequestResult, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("ADMIN_REQUIRED", "Only admins can update service requests")
	}

	req, err := s.load(ctx, s.db, ref, false)
	if err != nil {
		return nil, err
	}
	if in.Version != nil && *in.Version != req.Version {
		return nil, staleWrite(req)
	}

	updates := map[string]interface{}{}
	if in.AdminNotes != nil {
		updates["admin_notes"] = strings.TrimSpace(*in.AdminNotes)
	}
	if in.PreferredDate != nil {
		date := strings.TrimSpace(*in.PreferredDate)
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, NewValidationError("VALIDATION_ERROR", "preferred_date must be a date in YYYY-MM-DD format").
				With("field", "preferred_date")
		}
		updates["preferred_date"] = date
	}
	if in.PreferredTime != nil {
		if strings.TrimSpace(*in.PreferredTime) == "" {
			return nil, NewValidationError("VALIDATION_ERROR", "preferred_time cannot be empty").With("field", "preferred_time")
		}
		updates["preferred_time"] = strings.TrimSpace(*in.PreferredTime)
	}
	if in.CustomerPhone != nil {
		updates["customer_phone"] = strings.TrimSpace(*in.CustomerPhone)
	}
	if in.CustomerAddress != nil {
		updates["customer_address"] = strings.TrimSpace(*in.CustomerAddress)
	}

	from := req.Status
	to := req.Status
	if in.Status != nil {
		target, ok := models.ParseRequestStatus(*in.Status)
		if !ok {
			return nil, NewValidationError("INVALID_STATUS", "Unknown status %q", *in.Status)
		}
		if target == models.RequestAssigned && from != models.RequestAssigned {
			return nil, NewValidationError("ASSIGNMENT_REQUIRED", "Use the assign-provider operation to assign a request")
		}
		if target != from {
			tr := models.ValidateRequestTransition(from, target, actor.Role)
			if !tr.Allowed {
				if tr.Code == models.CodeRoleRequired {
					return nil, NewForbiddenError(tr.Code, "%s", tr.Reason).With("requiresRole", tr.RequiresRole)
				}
				return nil, NewConflictError(tr.Code, "%s", tr.Reason).With("currentStatus", from)
			}
			to = target
			updates["status"] = target
			if target == models.RequestCompleted {
				updates["completed_at"] = time.Now().UTC()
			}
		}
	}

	if len(updates) == 0 {
		return &RequestResult{Request: req}, nil
	}

	fields := make([]string, 0, len(updates))
	for k := range updates {
		fields = append(fields, k)
	}
	updates["version"] = gorm.Expr("version + 1")

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ServiceRequest{}).Where("id = ? AND version = ?", req.ID, req.Version).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}
		return tx.Create(requestEvent(req.ID, actor, "updated", from, to, map[string]interface{}{
			"fields": fields,
		})).Error
	})
	if errors.Is(err, errLostRace) {
		current, loadErr := s.load(ctx, s.db, ref, false)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, staleWrite(current)
	}
	if err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	req, err = s.load(ctx, s.db, ref, true)
	if err != nil {
		return nil, err
	}

	var effects SideEffects
	switch {
	case to == from:
	case to == models.RequestCompleted:
		s.afterCompletion(ctx, req, &effects)
		if req, err = s.load(ctx, s.db, ref, true); err != nil {
			return nil, err
		}
	case to == models.RequestCancelled:
		recomputeTrust(ctx, s.trust, &effects, req.AssignedProviderID)
	}
	s.publish(ctx, &effects, Event{
		Type:       EventRequestUpdated,
		ResourceID: req.ID,
		RequestID:  req.RequestID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"from_status": from, "to_status": to},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "service_request.update", "service_request", req.ID, map[string]interface{}{
		"fields":      fields,
		"from_status": string(from),
		"to_status":   string(to),
	}))

	return &RequestResult{Request: req, SideEffects: effects}, nil
}

func staleWrite(current *models.ServiceRequest) *ServiceError {
	return NewConflictError("STALE_WRITE", "The request was modified by someone else; reload and retry").
		With("currentVersion", current.Version).
		With("currentStatus", current.Status)
}

// load finds a request by numeric id or public request id
func (s *RequestService) load(ctx context.Context, db *gorm.DB, ref string, withDetails bool) (*models.ServiceRequest, error) {
	q := db.WithContext(ctx)
	if withDetails {
		q = q.Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
			Preload("Interests", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
			Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") })
	}

	var req models.ServiceRequest
	var err error
	if id, parseErr := strconv.ParseUint(ref, 10, 64); parseErr == nil {
		err = q.First(&req, uint(id)).Error
	} else {
		err = q.Where("request_id = ?", strings.ToUpper(strings.TrimSpace(ref))).First(&req).Error
	}
	if err != nil {
		return nil, notFoundOr(err, "REQUEST_NOT_FOUND", "Service request not found")
	}
	return &req, nil
}

func (s *RequestService) findProvider(ctx context.Context, providerID uint) (*models.User, error) {
	var provider models.User
	err := s.db.WithContext(ctx).Where("id = ? AND role = ?", providerID, models.RoleProvider).First(&provider).Error
	if err != nil {
		return nil, notFoundOr(err, "PROVIDER_NOT_FOUND", "Provider not found")
	}
	return &provider, nil
}

func canView(actor Actor, req *models.ServiceRequest) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return req.CustomerID == actor.UserID
	case models.RoleProvider:
		if req.IsAssignedTo(actor.UserID) || (!req.IsAssigned() && req.Status.AcceptsInterest()) {
			return true
		}
		for _, interest := range req.Interests {
			if interest.ProviderID == actor.UserID {
				return true
			}
		}
	}
	return false
}

func newEvent(actor Actor, action string, from, to models.RequestStatus, details map[string]interface{}) models.RequestEvent {
	return models.RequestEvent{
		Action:     action,
		ActorID:    actor.idPtr(),
		ActorRole:  actor.Role,
		ActorEmail: actor.Email,
		FromStatus: from,
		ToStatus:   to,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
}

func requestEvent(requestID uint, actor Actor, action string, from, to models.RequestStatus, details map[string]interface{}) *models.RequestEvent {
	event := newEvent(actor, action, from, to, details)
	event.ServiceRequestID = requestID
	return &event
}
