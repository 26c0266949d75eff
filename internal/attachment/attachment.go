// Package attachment stores files and images uploaded to issues.
package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/store"
)

// DefaultMaxSize bounds an upload when no limit is configured.
const DefaultMaxSize = 20 << 20

// Object describes a stored blob.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Storage is a blob store addressed by key.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error
}

// Upload is one file submitted for an issue.
type Upload struct {
	IssueID string
	Name    string
	Body    io.Reader
}

// Service validates uploads and places them in a Storage.
type Service struct {
	storage   Storage
	maxSize   int64
	publicURL string
}

// NewService returns a Service. publicURL is the prefix under which stored
// keys are served; it defaults to "/files".
func NewService(storage Storage, maxSize int64, publicURL string) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if publicURL == "" {
		publicURL = "/files"
	}
	return &Service{storage: storage, maxSize: maxSize, publicURL: strings.TrimRight(publicURL, "/")}
}

// Save stores u and returns the file reference to record on the issue.
// Uploads over the size limit, and empty uploads, are validation errors.
func (s *Service) Save(ctx context.Context, u Upload) (models.File, error) {
	if u.IssueID == "" {
		return models.File{}, fmt.Errorf("attachment: issue id is required: %w", store.ErrValidation)
	}
	data, err := io.ReadAll(io.LimitReader(u.Body, s.maxSize+1))
	if err != nil {
		return models.File{}, fmt.Errorf("attachment: read %s: %w", u.Name, err)
	}
	if int64(len(data)) > s.maxSize {
		return models.File{}, fmt.Errorf("attachment: %s exceeds %d bytes: %w", u.Name, s.maxSize, store.ErrValidation)
	}
	if len(data) == 0 {
		return models.File{}, fmt.Errorf("attachment: %s is empty: %w", u.Name, store.ErrValidation)
	}

	mime := mimetype.Detect(data)
	name := path.Base(strings.ReplaceAll(u.Name, "\\", "/"))
	if name == "." || name == "/" {
		name = "upload" + mime.Extension()
	}
	key := u.IssueID + "/" + uuid.NewString() + extension(name, mime)

	if err := s.storage.Put(ctx, key, data, mime.String()); err != nil {
		return models.File{}, fmt.Errorf("attachment: store %s: %w", key, err)
	}
	return models.File{
		URL:  s.publicURL + "/" + key,
		Name: name,
		Size: int64(len(data)),
		Type: mime.String(),
	}, nil
}

// Open returns the content of a stored key.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return nil, Object{}, fmt.Errorf("attachment: invalid key %q: %w", key, store.ErrValidation)
	}
	return s.storage.Open(ctx, key)
}

// Discard deletes the blob behind a file returned by Save, for uploads that
// never made it onto their issue.
func (s *Service) Discard(ctx context.Context, f models.File) error {
	key, ok := strings.CutPrefix(f.URL, s.publicURL+"/")
	if !ok || key == "" {
		return fmt.Errorf("attachment: %s is not a stored file: %w", f.URL, store.ErrValidation)
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("attachment: delete %s: %w", key, err)
	}
	return nil
}

// extension keeps the uploaded name's extension, falling back to the one
// implied by the detected type.
func extension(name string, mime *mimetype.MIME) string {
	if ext := path.Ext(name); ext != "" && len(ext) <= 10 {
		return strings.ToLower(ext)
	}
	return mime.Extension()
}

// IsImage reports whether contentType is an image type.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// Attach returns the patch that appends f to an issue: images go to
// Images, everything else to Files. The append applies to the issue as it
// stands when the patch lands, so concurrent attaches all survive.
func Attach(f models.File) models.IssuePatch {
	if IsImage(f.Type) {
		return models.IssuePatch{AddImages: []string{f.URL}}
	}
	return models.IssuePatch{AddFiles: []models.File{f}}
}

// MemoryStorage keeps blobs in memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memObject)}
}

func (m *MemoryStorage) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *MemoryStorage) Open(_ context.Context, key string) (io.ReadCloser, Object, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, Object{}, fmt.Errorf("attachment: %s: %w", key, store.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), Object{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
