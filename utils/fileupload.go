package utils

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxFileSize is 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024
)

// allowedProofTypes maps accepted proof extensions to the content type the bytes must carry
var allowedProofTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateProofFile checks a payment proof upload and returns its content type.
// The extension must be PNG, JPEG or PDF and the file content must agree with it.
func ValidateProofFile(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size > MaxFileSize {
		return "", &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	expected, ok := allowedProofTypes[ext]
	if !ok {
		return "", &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only .png, .jpg, .jpeg and .pdf files are allowed",
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to inspect file: %w", err)
	}
	if !detected.Is(expected) {
		return "", &FileUploadError{
			Code:    "CONTENT_MISMATCH",
			Message: fmt.Sprintf("File content is %s, expected %s", detected.String(), expected),
		}
	}

	return expected, nil
}

// ProofKey builds the object storage key for a payment proof
func ProofKey(jobID uint, unixTime int64, filename string) string {
	name := strings.ReplaceAll(filepath.Base(filename), " ", "_")
	return fmt.Sprintf("payment-proofs/%d/%d_%s", jobID, unixTime, name)
}
