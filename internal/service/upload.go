package service

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
	"github.com/isdb-fas/fasdesk/pkg/metrics"
)

// ErrEmptyUpload is returned for an upload without a file name.
var ErrEmptyUpload = errors.New("upload must have a file name")

// UploadService manages a session's pending attachments.
type UploadService struct {
	sessions *SessionManager
	store    string
	logger   *logger.Logger
}

// NewUploadService creates a new upload service.
func NewUploadService(sessions *SessionManager, log *logger.Logger) *UploadService {
	return &UploadService{
		sessions: sessions,
		store:    sessions.blobs.Name(),
		logger:   log,
	}
}

// Add stores a file and appends it to the session's pending uploads.
func (s *UploadService) Add(ctx context.Context, sessionID, name, mimeType string, size int64, body io.Reader) (model.FileAttachment, error) {
	if name == "" {
		return model.FileAttachment{}, ErrEmptyUpload
	}

	att, err := s.sessions.Get(sessionID).Uploads.Add(ctx, name, mimeType, size, body)
	if err != nil {
		metrics.RecordUpload(s.store, "error")
		s.logger.Error("upload failed",
			zap.String("session_id", sessionID),
			zap.String("name", name),
			zap.Error(err),
		)
		return model.FileAttachment{}, err
	}

	metrics.RecordUpload(s.store, "success")
	return att, nil
}

// List returns the session's pending uploads.
func (s *UploadService) List(ctx context.Context, sessionID string) []model.FileAttachment {
	return s.sessions.Get(sessionID).Uploads.List()
}

// Remove discards one pending upload.
func (s *UploadService) Remove(ctx context.Context, sessionID, id string) error {
	return s.sessions.Get(sessionID).Uploads.Remove(ctx, id)
}

// Clear discards every pending upload.
func (s *UploadService) Clear(ctx context.Context, sessionID string) error {
	return s.sessions.Get(sessionID).Uploads.Clear(ctx)
}
