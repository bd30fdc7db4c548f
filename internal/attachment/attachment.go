// Package attachment keeps the files a user has uploaded but not yet sent.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/isdb-fas/fasdesk/internal/model"
)

// ErrNotFound is returned for unknown attachment or blob IDs.
var ErrNotFound = errors.New("attachment not found")

const thumbnailDir = "/sample-files/"

// Thumbnail returns the preview URL for a file of the given MIME type.
// Images preview themselves; other types get a fixed icon.
func Thumbnail(mimeType, url string) string {
	t := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(t, "image/"):
		return url
	case strings.Contains(t, "pdf"):
		return thumbnailDir + "pdf-thumbnail.png"
	case strings.Contains(t, "word") || strings.Contains(t, "document"):
		return thumbnailDir + "doc-thumbnail.png"
	case strings.Contains(t, "excel") || strings.Contains(t, "spreadsheet"):
		return thumbnailDir + "xls-thumbnail.png"
	case strings.Contains(t, "presentation") || strings.Contains(t, "powerpoint"):
		return thumbnailDir + "ppt-thumbnail.png"
	default:
		return thumbnailDir + "file-thumbnail.png"
	}
}

// BlobStore holds uploaded file contents.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, size int64, body io.Reader) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Name() string
}

// Registry is one session's list of pending uploads.
type Registry struct {
	mu      sync.Mutex
	store   BlobStore
	pending []model.FileAttachment
	newID   func() string
}

// NewRegistry creates an empty registry backed by store.
func NewRegistry(store BlobStore) *Registry {
	return &Registry{
		store: store,
		newID: func() string { return "file-" + uuid.NewString() },
	}
}

// Add stores the file and appends it to the pending list.
func (r *Registry) Add(ctx context.Context, name, mimeType string, size int64, body io.Reader) (model.FileAttachment, error) {
	id := r.newID()
	if err := r.store.Put(ctx, id, mimeType, size, body); err != nil {
		return model.FileAttachment{}, fmt.Errorf("failed to store %s: %w", name, err)
	}

	url, err := r.store.URL(ctx, id)
	if err != nil {
		_ = r.store.Delete(ctx, id)
		return model.FileAttachment{}, fmt.Errorf("failed to resolve url for %s: %w", name, err)
	}

	att := model.FileAttachment{
		ID:           id,
		Name:         name,
		Type:         mimeType,
		Size:         size,
		URL:          url,
		ThumbnailURL: Thumbnail(mimeType, url),
	}

	r.mu.Lock()
	r.pending = append(r.pending, att)
	r.mu.Unlock()
	return att, nil
}

// List returns a copy of the pending uploads.
func (r *Registry) List() []model.FileAttachment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.FileAttachment(nil), r.pending...)
}

// Remove drops a pending upload and deletes its contents.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	r.pending = append(r.pending[:idx], r.pending[idx+1:]...)
	r.mu.Unlock()

	return r.store.Delete(ctx, id)
}

// Clear drops every pending upload and deletes their contents.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	dropped := r.pending
	r.pending = nil
	r.mu.Unlock()

	var errs []error
	for _, att := range dropped {
		if err := r.store.Delete(ctx, att.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Take removes the given uploads from the pending list and returns them in
// upload order, for attaching to a message. Their contents are kept. An empty
// ids takes everything pending.
func (r *Registry) Take(ids []string) ([]model.FileAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(ids) == 0 {
		taken := r.pending
		r.pending = nil
		return taken, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r.indexOf(id) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		want[id] = true
	}

	var taken, kept []model.FileAttachment
	for _, att := range r.pending {
		if want[att.ID] {
			taken = append(taken, att)
		} else {
			kept = append(kept, att)
		}
	}
	r.pending = kept
	return taken, nil
}

func (r *Registry) indexOf(id string) int {
	for i, att := range r.pending {
		if att.ID == id {
			return i
		}
	}
	return -1
}
