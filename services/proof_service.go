package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/homeswift/homeswift-api/utils"
)

// ProofStorage stores the files customers attach to payments
type ProofStorage interface {
	// UploadProof validates and stores a proof for a job, returning its storage key
	UploadProof(ctx context.Context, jobID uint, fileHeader *multipart.FileHeader) (string, error)

	// ProofURL returns a short lived URL for downloading a stored proof
	ProofURL(ctx context.Context, key string) (string, error)

	// DeleteProof removes a stored proof
	DeleteProof(ctx context.Context, key string) error
}

// S3ProofService implements ProofStorage on top of an S3Interface
type S3ProofService struct {
	s3  S3Interface
	now func() time.Time
}

// NewS3ProofService creates a proof store backed by s3
func NewS3ProofService(s3 S3Interface) *S3ProofService {
	return &S3ProofService{s3: s3, now: time.Now}
}

// UploadProof validates the file and uploads it under payment-proofs/<job>/
func (s *S3ProofService) UploadProof(ctx context.Context, jobID uint, fileHeader *multipart.FileHeader) (string, error) {
	contentType, err := utils.ValidateProofFile(fileHeader)
	if err != nil {
		var fileErr *utils.FileUploadError
		if errors.As(err, &fileErr) {
			return "", NewValidationError(fileErr.Code, "%s", fileErr.Message)
		}
		return "", err
	}

	key := utils.ProofKey(jobID, s.now().Unix(), fileHeader.Filename)
	if err := s.s3.UploadFile(ctx, key, fileHeader, contentType); err != nil {
		return "", fmt.Errorf("failed to upload proof: %w", err)
	}

	return key, nil
}

// ProofURL generates a presigned URL for a proof
func (s *S3ProofService) ProofURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	url, err := s.s3.GetPresignedURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to generate proof URL: %w", err)
	}

	return url, nil
}

// DeleteProof deletes a proof
func (s *S3ProofService) DeleteProof(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := s.s3.DeleteFile(ctx, key); err != nil {
		return fmt.Errorf("failed to delete proof: %w", err)
	}

	return nil
}
