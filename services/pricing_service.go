package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/homeswift/homeswift-api/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrPricingNotFound is returned when no catalog entry exists for a (category, service type) pair
var ErrPricingNotFound = errors.New("pricing entry not found")

// PricingCatalog resolves the price of a service
type PricingCatalog interface {
	FindPricing(ctx context.Context, category, serviceType string) (*models.PricingEntry, error)
}

// PricingService reads the pricing catalog from the database
type PricingService struct {
	db *gorm.DB
}

// NewPricingService creates a pricing service
func NewPricingService(db *gorm.DB) *PricingService {
	return &PricingService{db: db}
}

// FindPricing looks up an entry; lookups ignore case and surrounding spaces
func (s *PricingService) FindPricing(ctx context.Context, category, serviceType string) (*models.PricingEntry, error) {
	var entry models.PricingEntry
	err := s.db.WithContext(ctx).
		Where("category = ? AND service_type = ?", normalizeKey(category), normalizeKey(serviceType)).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPricingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing: %w", err)
	}
	return &entry, nil
}

// List returns the whole catalog ordered by category and service type
func (s *PricingService) List(ctx context.Context) ([]models.PricingEntry, error) {
	var entries []models.PricingEntry
	if err := s.db.WithContext(ctx).Order("category, service_type").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list pricing: %w", err)
	}
	return entries, nil
}

// EnsureDefaults seeds DefaultPricing when the catalog is empty
func (s *PricingService) EnsureDefaults(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.PricingEntry{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count pricing entries: %w", err)
	}
	if count > 0 {
		return nil
	}

	entries := DefaultPricing()
	if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to seed pricing: %w", err)
	}
	log.Info().Int("entries", len(entries)).Msg("seeded default pricing catalog")
	return nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultPricing is the starter catalog used on an empty database
func DefaultPricing() []models.PricingEntry {
	rows := []struct {
		category, serviceType string
		customer, provider    string
		surcharge             string
		white                 bool
	}{
		{"sofa", "1-seater", "35.00", "22.00", "10.00", true},
		{"sofa", "2-seater", "55.00", "35.00", "15.00", true},
		{"sofa", "3-seater", "75.00", "48.00", "20.00", true},
		{"sofa", "l-shape", "110.00", "70.00", "30.00", true},
		{"mattress", "single", "40.00", "25.00", "10.00", true},
		{"mattress", "double", "55.00", "35.00", "12.00", true},
		{"mattress", "queen", "65.00", "42.00", "15.00", true},
		{"mattress", "king", "75.00", "48.00", "18.00", true},
		{"carpet", "small", "30.00", "18.00", "0.00", false},
		{"carpet", "medium", "50.00", "32.00", "0.00", false},
		{"carpet", "large", "80.00", "52.00", "0.00", false},
		{"upholstery", "dining-chair", "12.00", "7.00", "4.00", true},
		{"upholstery", "armchair", "30.00", "19.00", "8.00", true},
		{"car-interior", "sedan", "90.00", "58.00", "0.00", false},
		{"car-interior", "suv", "120.00", "78.00", "0.00", false},
	}

	entries := make([]models.PricingEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.PricingEntry{
			Category:          r.category,
			ServiceType:       r.serviceType,
			CustomerPrice:     decimal.RequireFromString(r.customer),
			ProviderPrice:     decimal.RequireFromString(r.provider),
			ColorSurcharge:    decimal.RequireFromString(r.surcharge),
			IsWhiteApplicable: r.white,
		})
	}
	return entries
}
