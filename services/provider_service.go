package services

import (
	"context"
	"strings"
	"time"

	"github.com/homeswift/homeswift-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ProviderService manages provider profiles and their verification
type ProviderService struct {
	db    *gorm.DB
	trust TrustScorer
	notifier
}

// ProviderResult is a provider profile after a write, with the outcome of its follow-ups
type ProviderResult struct {
	Profile     *models.ProviderProfile
	SideEffects SideEffects
}

// EnsureProfile creates the pending profile of a provider account if it does not exist yet
func (s *ProviderService) EnsureProfile(ctx context.Context, user *models.User) (*models.ProviderProfile, error) {
	if user.Role != models.RoleProvider {
		return nil, nil
	}
	profile := models.ProviderProfile{UserID: user.ID, VerificationStatus: models.VerificationPending}
	if err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).FirstOrCreate(&profile).Error; err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}
	return &profile, nil
}

// GetProfile returns a provider's profile with its user
func (s *ProviderService) GetProfile(ctx context.Context, providerID uint) (*models.ProviderProfile, error) {
	var profile models.ProviderProfile
	err := s.db.WithContext(ctx).Preload("User").Where("user_id = ?", providerID).First(&profile).Error
	if err != nil {
		return nil, notFoundOr(err, "PROVIDER_NOT_FOUND", "Provider not found")
	}
	return &profile, nil
}

// UpdateVerification sets a provider's verification status and refreshes the trust score
func (s *ProviderService) UpdateVerification(ctx context.Context, actor Actor, providerID uint, status string) (*ProviderResult, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("ADMIN_REQUIRED", "Only admins can verify providers")
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.IsValidVerificationStatus(status) {
		return nil, NewValidationError("INVALID_STATUS", "verification_status must be pending, verified or rejected")
	}

	var provider models.User
	if err := s.db.WithContext(ctx).Where("id = ? AND role = ?", providerID, models.RoleProvider).First(&provider).Error; err != nil {
		return nil, notFoundOr(err, "PROVIDER_NOT_FOUND", "Provider not found")
	}

	profile, err := s.EnsureProfile(ctx, &provider)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"verification_status": status}
	if status == models.VerificationVerified {
		updates["verified_at"] = time.Now().UTC()
		updates["verified_by"] = actor.Label()
	} else {
		updates["verified_at"] = nil
		updates["verified_by"] = ""
	}
	if err := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	profile, err = s.GetProfile(ctx, providerID)
	if err != nil {
		return nil, err
	}

	log.Info().Uint("provider_id", providerID).Str("verification_status", status).Msg("provider verification updated")

	var effects SideEffects
	recomputeTrust(ctx, s.trust, &effects, &providerID)
	s.publish(ctx, &effects, Event{
		Type:       EventProviderVerification,
		ResourceID: providerID,
		Actor:      actor.Label(),
		Data:       map[string]interface{}{"verification_status": status},
	})
	s.logAudit(ctx, &effects, auditEvent(actor, "provider.verification", "provider", providerID, map[string]interface{}{
		"verification_status": status,
	}))

	return &ProviderResult{Profile: profile, SideEffects: effects}, nil
}
