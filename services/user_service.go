package services

import (
	"context"
	"strings"

	"github.com/homeswift/homeswift-api/models"
	"gorm.io/gorm"
)

// UserService manages HomeSwift accounts created from Auth0 identities
type UserService struct {
	db *gorm.DB
}

// CreateUser stores the account of an Auth0 identity. Provider accounts get a pending profile.
func (s *UserService) CreateUser(ctx context.Context, auth0ID string, info *Auth0UserInfo, role string) (*models.User, error) {
	if info.Email == "" {
		return nil, NewValidationError("MISSING_EMAIL", "Email not provided by Auth0")
	}
	if info.Name == "" {
		return nil, NewValidationError("MISSING_NAME", "Name not provided by Auth0")
	}
	if role == "" {
		role = models.RoleCustomer
	}
	if !models.IsValidRole(role) {
		return nil, NewValidationError("INVALID_ROLE", "Role %q cannot be assigned", role)
	}

	user := &models.User{
		Auth0ID: auth0ID,
		Name:    info.Name,
		Email:   strings.ToLower(info.Email),
		Phone:   info.PhoneNumber,
		Role:    role,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if role == models.RoleProvider {
			return tx.Create(&models.ProviderProfile{UserID: user.ID, VerificationStatus: models.VerificationPending}).Error
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflictError("USER_EXISTS", "A user with this Auth0 ID or email already exists")
		}
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	return user, nil
}

// GetByAuth0ID finds the account of an Auth0 subject
func (s *UserService) GetByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
	}
	return &user, nil
}

// UpdateProfileInput carries the editable profile fields; empty fields are left unchanged
type UpdateProfileInput struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

// UpdateProfile edits the caller's own account
func (s *UserService) UpdateProfile(ctx context.Context, auth0ID string, in UpdateProfileInput) (*models.User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.GetByAuth0ID(ctx, auth0ID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name := strings.TrimSpace(in.Name); name != "" {
		updates["name"] = name
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		updates["email"] = strings.ToLower(email)
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		updates["phone"] = phone
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflictError("EMAIL_EXISTS", "A user with this email already exists")
		}
		return nil, NewInternalError("DATABASE_ERROR", err)
	}

	return s.GetByAuth0ID(ctx, auth0ID)
}
