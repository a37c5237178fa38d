package services

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StoredUpload is a report saved to the upload directory for the length of
// one evaluation.
type StoredUpload struct {
	Name         string
	Path         string
	OriginalName string
}

type StorageService interface {
	EnsureUploadDir() error
	Save(file *multipart.FileHeader) (*StoredUpload, error)
	Remove(upload *StoredUpload) error
}

type storageService struct {
	uploadDir string
}

func NewStorageService(uploadDir string) StorageService {
	return &storageService{uploadDir: uploadDir}
}

func (s *storageService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	return nil
}

// Save writes the upload under a fresh uuid name. Any file name is accepted;
// the provider decides whether it can read the content.
func (s *storageService) Save(file *multipart.FileHeader) (*StoredUpload, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		log.Printf("⚠️  Upload %q has no .pdf extension, forwarding as is\n", file.Filename)
	}

	upload := &StoredUpload{
		Name:         "report_" + uuid.NewString() + ext,
		OriginalName: file.Filename,
	}
	upload.Path = filepath.Join(s.uploadDir, upload.Name)

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(upload.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", upload.Name, err)
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(upload.Path)
		return nil, fmt.Errorf("failed to write %s: %w", upload.Name, copyErr)
	}

	return upload, nil
}

// Remove deletes a stored upload. Missing files are not an error.
func (s *storageService) Remove(upload *StoredUpload) error {
	if upload == nil {
		return nil
	}
	if err := os.Remove(upload.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", upload.Name, err)
	}
	return nil
}
