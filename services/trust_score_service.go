package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/homeswift/homeswift-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrustInputs are the source figures a trust score is derived from
type TrustInputs struct {
	TotalJobs          int
	CompletedJobs      int
	CancelledJobs      int
	OnTimeJobs         int
	AverageRating      float64
	TotalReviews       int
	VerificationStatus string
}

// DeriveTrustScore computes every trust figure from its inputs. It performs no IO.
func DeriveTrustScore(providerID uint, in TrustInputs) models.TrustScore {
	var completionRate, cancellationRate, onTimeFraction float64
	if in.TotalJobs > 0 {
		completionRate = float64(in.CompletedJobs) / float64(in.TotalJobs)
		cancellationRate = float64(in.CancelledJobs) / float64(in.TotalJobs)
	}
	if in.CompletedJobs > 0 {
		onTimeFraction = float64(in.OnTimeJobs) / float64(in.CompletedJobs)
	}

	reliability := clamp(50+40*completionRate-30*cancellationRate+20*onTimeFraction, 0, 100)
	level := models.VerificationLevel(in.VerificationStatus)

	score := reliability*0.30 +
		completionRate*100*0.30 +
		(1-cancellationRate)*100*0.20 +
		in.AverageRating*20*0.15 +
		float64(level)*33.33*0.05

	return models.TrustScore{
		ProviderID:        providerID,
		ReliabilityScore:  round(reliability, 2),
		CompletionRate:    round(completionRate, 4),
		CancellationRate:  round(cancellationRate, 4),
		AverageRating:     round(in.AverageRating, 2),
		VerificationLevel: level,
		Score:             round(clamp(score, 0, 100), 2),
		TotalJobs:         in.TotalJobs,
		CompletedJobs:     in.CompletedJobs,
		CancelledJobs:     in.CancelledJobs,
		OnTimeJobs:        in.OnTimeJobs,
		TotalReviews:      in.TotalReviews,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// TrustScorer recomputes and stores a provider's trust score
type TrustScorer interface {
	UpdateTrustScore(ctx context.Context, providerID uint) (*models.TrustScore, error)
}

// TrustScoreService reads source data for and caches provider trust scores
type TrustScoreService struct {
	db *gorm.DB
}

// NewTrustScoreService creates a trust score service
func NewTrustScoreService(db *gorm.DB) *TrustScoreService {
	return &TrustScoreService{db: db}
}

// LoadInputs gathers the source figures for a provider
func (s *TrustScoreService) LoadInputs(ctx context.Context, providerID uint) (TrustInputs, error) {
	db := s.db.WithContext(ctx)

	var provider models.User
	if err := db.Where("id = ? AND role = ?", providerID, models.RoleProvider).First(&provider).Error; err != nil {
		return TrustInputs{}, notFoundOr(err, "PROVIDER_NOT_FOUND", "Provider not found")
	}

	var jobs []models.ServiceRequest
	if err := db.Select("id", "status", "preferred_date", "completed_at").
		Where("assigned_provider_id = ?", providerID).
		Find(&jobs).Error; err != nil {
		return TrustInputs{}, fmt.Errorf("failed to load provider jobs: %w", err)
	}

	in := TrustInputs{TotalJobs: len(jobs)}
	for _, job := range jobs {
		switch job.Status {
		case models.RequestCompleted:
			in.CompletedJobs++
			if job.CompletedAt != nil && job.CompletedAt.UTC().Format(dateLayout) <= job.PreferredDate {
				in.OnTimeJobs++
			}
		case models.RequestCancelled:
			in.CancelledJobs++
		}
	}

	var ratings struct {
		Average float64
		Total   int
	}
	if err := db.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where("reviewee_id = ? AND reviewed_by = ?", providerID, models.RoleCustomer).
		Scan(&ratings).Error; err != nil {
		return TrustInputs{}, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	in.AverageRating = ratings.Average
	in.TotalReviews = ratings.Total

	var profile models.ProviderProfile
	err := db.Where("user_id = ?", providerID).First(&profile).Error
	switch {
	case err == nil:
		in.VerificationStatus = profile.VerificationStatus
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return TrustInputs{}, fmt.Errorf("failed to load provider profile: %w", err)
	}

	return in, nil
}

// ComputeTrustScore derives the current score without storing it
func (s *TrustScoreService) ComputeTrustScore(ctx context.Context, providerID uint) (*models.TrustScore, error) {
	in, err := s.LoadInputs(ctx, providerID)
	if err != nil {
		return nil, err
	}
	score := DeriveTrustScore(providerID, in)
	score.CalculatedAt = time.Now().UTC()
	return &score, nil
}

// UpdateTrustScore recomputes a provider's score and upserts the cached row
func (s *TrustScoreService) UpdateTrustScore(ctx context.Context, providerID uint) (*models.TrustScore, error) {
	score, err := s.ComputeTrustScore(ctx, providerID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reliability_score", "completion_rate", "cancellation_rate", "average_rating",
			"verification_level", "trust_score", "total_jobs", "completed_jobs", "cancelled_jobs",
			"on_time_jobs", "total_reviews", "calculated_at", "updated_at",
		}),
	}).Create(score).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store trust score: %w", err)
	}

	var stored models.TrustScore
	if err := s.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload trust score: %w", err)
	}

	log.Debug().Uint("provider_id", providerID).Float64("trust_score", stored.Score).Msg("trust score updated")
	return &stored, nil
}

// GetOrCreate returns the cached score, computing and storing it on first read
func (s *TrustScoreService) GetOrCreate(ctx context.Context, providerID uint) (*models.TrustScore, error) {
	var stored models.TrustScore
	err := s.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&stored).Error
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load trust score: %w", err)
	}
	return s.UpdateTrustScore(ctx, providerID)
}

// recomputeTrust refreshes a provider's score as a best-effort side effect
func recomputeTrust(ctx context.Context, trust TrustScorer, effects *SideEffects, providerID *uint) {
	if trust == nil || providerID == nil {
		return
	}
	effects.Run("trust_score.recompute", func() error {
		_, err := trust.UpdateTrustScore(ctx, *providerID)
		return err
	})
}
