package utils

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Smallest headers the content sniffer recognises
var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	pdfHeader  = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
)

// createTestFileHeader creates a mock multipart.FileHeader for testing
func createTestFileHeader(filename string, size int64, content []byte) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="proof"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, _ := writer.CreatePart(h)
	part.Write(content)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content)) + 1024)

	if len(form.File["proof"]) > 0 {
		fileHeader := form.File["proof"][0]
		// Override size for testing purposes
		fileHeader.Size = size
		return fileHeader
	}

	return nil
}

func TestValidateProofFile_AcceptedFormats(t *testing.T) {
	tests := []struct {
		filename string
		content  []byte
		want     string
	}{
		{"receipt.png", pngHeader, "image/png"},
		{"receipt.JPG", jpegHeader, "image/jpeg"},
		{"receipt.jpeg", jpegHeader, "image/jpeg"},
		{"statement.pdf", pdfHeader, "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			fileHeader := createTestFileHeader(tt.filename, int64(len(tt.content)), tt.content)
			require.NotNil(t, fileHeader)

			contentType, err := ValidateProofFile(fileHeader)
			require.NoError(t, err)
			assert.Equal(t, tt.want, contentType)
		})
	}
}

func TestValidateProofFile_FileTooLarge(t *testing.T) {
	fileHeader := createTestFileHeader("large.png", 11*1024*1024, pngHeader)
	require.NotNil(t, fileHeader)

	_, err := ValidateProofFile(fileHeader)
	require.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok, "Error should be of type FileUploadError")
	assert.Equal(t, "FILE_TOO_LARGE", fileErr.Code)
	assert.Contains(t, fileErr.Message, "File size exceeds maximum allowed size")
}

func TestValidateProofFile_InvalidExtension(t *testing.T) {
	fileHeader := createTestFileHeader("receipt.gif", int64(len(pngHeader)), pngHeader)
	require.NotNil(t, fileHeader)

	_, err := ValidateProofFile(fileHeader)
	require.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_FILE_FORMAT", fileErr.Code)
}

func TestValidateProofFile_ContentMismatch(t *testing.T) {
	content := []byte("just some text pretending to be an image")
	fileHeader := createTestFileHeader("receipt.png", int64(len(content)), content)
	require.NotNil(t, fileHeader)

	_, err := ValidateProofFile(fileHeader)
	require.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok)
	assert.Equal(t, "CONTENT_MISMATCH", fileErr.Code)
}

func TestValidateProofFile_ExactlyMaxSize(t *testing.T) {
	fileHeader := createTestFileHeader("exact.pdf", MaxFileSize, pdfHeader)
	require.NotNil(t, fileHeader)

	_, err := ValidateProofFile(fileHeader)
	assert.NoError(t, err, "a file of exactly the limit is accepted")
}

func TestProofKey(t *testing.T) {
	assert.Equal(t, "payment-proofs/12/1700000000_bank_slip.pdf", ProofKey(12, 1700000000, "../bank slip.pdf"))
}
