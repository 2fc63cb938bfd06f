package upload

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"admin-backend/internal/logging"
)

const (
	// DefaultPartSize is the chunk size advertised to clients.
	DefaultPartSize int64 = 8 << 20

	// MinPartSize is the smallest non-final part S3-compatible stores accept.
	MinPartSize int64 = 5 << 20

	DefaultPresignTTL         = 10 * time.Minute
	DefaultRemoteTimeout      = 30 * time.Second
	DefaultAbortRetryInterval = 200 * time.Millisecond

	defaultContentType = "application/octet-stream"
)

// Config holds the Manager's fixed policies.
type Config struct {
	// PartSize is recorded on every session and is the same for all of them.
	PartSize int64

	// PresignTTL is the lifetime of a part upload URL.
	PresignTTL time.Duration

	// RemoteTimeout bounds each object store call.
	RemoteTimeout time.Duration

	// PublicBaseURL prefixes the storage key to form a file's public URL.
	PublicBaseURL string

	// AbortRetries is how many times a failed remote abort is retried
	// before the session is dropped locally. Zero disables retries.
	AbortRetries       uint64
	AbortRetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PartSize <= 0 {
		c.PartSize = DefaultPartSize
	}
	if c.PresignTTL <= 0 {
		c.PresignTTL = DefaultPresignTTL
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = DefaultRemoteTimeout
	}
	if c.AbortRetryInterval <= 0 {
		c.AbortRetryInterval = DefaultAbortRetryInterval
	}
	return c
}

// Manager owns the lifecycle of multipart upload sessions. It holds no
// mutable state of its own and is safe for concurrent use.
type Manager struct {
	store   Store
	objects ObjectStore
	cfg     Config

	now   func() time.Time
	newID func() string
}

// NewManager wires a Manager to its store and object store.
func NewManager(store Store, objects ObjectStore, cfg Config) *Manager {
	return &Manager{
		store:   store,
		objects: objects,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.RemoteTimeout)
}

// CreateUpload initiates a multipart upload in the object store and records
// the session.
func (m *Manager) CreateUpload(ctx context.Context, req CreateRequest) (Session, error) {
	const op = "create_upload"

	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		return Session{}, validationError(op, "owner_id is required")
	}
	if req.DeclaredSize < 0 {
		return Session{}, validationError(op, "size must not be negative")
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = DefaultFilename
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}

	fileID := m.newID()
	key := StorageKey(owner, fileID, filename)

	rctx, cancel := m.remoteContext(ctx)
	uploadID, err := m.objects.InitiateMultipartUpload(rctx, key, contentType)
	cancel()
	if err != nil {
		return Session{}, newError(KindObjectStore, op, "", err)
	}
	if uploadID == "" {
		return Session{}, newError(KindObjectStore, op, "", errors.New("object store returned an empty upload id"))
	}

	now := m.now().UTC()
	s := Session{
		UploadID:     uploadID,
		FileID:       fileID,
		OwnerID:      owner,
		StorageKey:   key,
		Filename:     filename,
		ContentType:  contentType,
		DeclaredSize: req.DeclaredSize,
		PartSize:     m.cfg.PartSize,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.CreateUpload(ctx, s); err != nil {
		// The remote upload has no local record now; drop it so it does not
		// linger until the bucket's lifecycle policy reclaims it.
		m.abortOrphan(ctx, key, uploadID)
		return Session{}, newError(KindPersistence, op, uploadID, err)
	}

	logging.Info("upload created", logging.Fields{
		"upload_id": uploadID,
		"file_id":   fileID,
		"owner_id":  owner,
		"key":       key,
		"size":      req.DeclaredSize,
	})
	return s, nil
}

func (m *Manager) abortOrphan(ctx context.Context, key, uploadID string) {
	ctx = context.WithoutCancel(ctx)
	if err := m.abortRemote(ctx, key, uploadID); err != nil {
		logging.Error("orphaned upload abort failed", logging.Fields{
			"upload_id": uploadID,
			"key":       key,
		}, err)
	}
}

// GetUpload returns the session and its parts in ascending part order.
func (m *Manager) GetUpload(ctx context.Context, uploadID string) (Session, []Part, error) {
	const op = "get_upload"

	s, err := m.store.FindUpload(ctx, uploadID)
	if err != nil {
		return Session{}, nil, storeError(op, uploadID, err)
	}
	parts, err := m.store.ListParts(ctx, uploadID)
	if err != nil {
		return Session{}, nil, storeError(op, uploadID, err)
	}
	sortParts(parts)
	return s, parts, nil
}

// PartUploadURL presigns a PUT for one part. The part number is passed
// through unchecked; the object store rejects values it does not accept.
func (m *Manager) PartUploadURL(ctx context.Context, uploadID string, partNumber int) (string, error) {
	const op = "get_part_upload_url"

	s, err := m.store.FindUpload(ctx, uploadID)
	if err != nil {
		return "", storeError(op, uploadID, err)
	}

	rctx, cancel := m.remoteContext(ctx)
	defer cancel()
	u, err := m.objects.PresignPartURL(rctx, s.StorageKey, s.UploadID, partNumber, m.cfg.PresignTTL)
	if err != nil {
		return "", newError(KindObjectStore, op, uploadID, err)
	}
	return u, nil
}

// RegisterPart records the etag the object store returned for a part.
// Registering the same part number again replaces the etag.
func (m *Manager) RegisterPart(ctx context.Context, uploadID string, partNumber int, etag string) error {
	const op = "register_part"

	etag = strings.TrimSpace(etag)
	if partNumber < 1 {
		return validationError(op, "part_number must be >= 1")
	}
	if partNumber > math.MaxInt32 {
		return validationError(op, "part_number is out of range")
	}
	if etag == "" {
		return validationError(op, "etag is required")
	}

	if err := m.store.UpsertPart(ctx, uploadID, partNumber, etag); err != nil {
		return storeError(op, uploadID, err)
	}

	logging.Debug("part registered", logging.Fields{
		"upload_id":   uploadID,
		"part_number": partNumber,
	})
	return nil
}

// CompleteUpload asks the object store to assemble the registered parts and,
// on success, replaces the session with a FileMetadata record.
//
// A remote failure leaves the session untouched so the caller can register
// missing parts and retry.
func (m *Manager) CompleteUpload(ctx context.Context, uploadID string, by Attribution) (FileMetadata, error) {
	const op = "complete_upload"

	s, parts, err := m.GetUpload(ctx, uploadID)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Op = op
		}
		return FileMetadata{}, err
	}

	rctx, cancel := m.remoteContext(ctx)
	err = m.objects.CompleteMultipartUpload(rctx, s.StorageKey, s.UploadID, parts)
	cancel()
	if err != nil {
		// A concurrent completer may have finished the upload, which makes
		// the remote call fail; report that as NotFound. A remote 404 can
		// arrive while the winner still holds the session row.
		if remoteStatus(err) == http.StatusNotFound {
			return FileMetadata{}, newError(KindNotFound, op, uploadID, err)
		}
		if _, ferr := m.store.FindUpload(ctx, uploadID); errors.Is(ferr, ErrRecordNotFound) {
			return FileMetadata{}, storeError(op, uploadID, ferr)
		}
		logging.Warn("upload completion rejected", logging.Fields{
			"upload_id": uploadID,
			"parts":     len(parts),
			"status":    remoteStatus(err),
		})
		return FileMetadata{}, newError(KindCompletion, op, uploadID, err)
	}

	meta := FileMetadata{
		ID:                 s.FileID,
		OwnerID:            s.OwnerID,
		Filename:           s.Filename,
		ContentType:        s.ContentType,
		Size:               s.DeclaredSize,
		StorageKey:         s.StorageKey,
		URL:                PublicURL(m.cfg.PublicBaseURL, s.StorageKey),
		UploadedAt:         m.now().UTC(),
		UploaderUsername:   strings.TrimSpace(by.Username),
		UploaderGlobalName: strings.TrimSpace(by.GlobalName),
		UploaderAvatarURL:  strings.TrimSpace(by.AvatarURL),
	}

	if err := m.store.FinalizeUpload(ctx, uploadID, meta); err != nil {
		return FileMetadata{}, storeError(op, uploadID, err)
	}

	logging.Info("upload completed", logging.Fields{
		"upload_id": uploadID,
		"file_id":   meta.ID,
		"parts":     len(parts),
	})
	return meta, nil
}

// AbortUpload aborts the remote upload and drops the session. The session is
// deleted even when the remote abort fails; that failure is still returned
// as an ObjectStoreError.
func (m *Manager) AbortUpload(ctx context.Context, uploadID string) error {
	const op = "abort_upload"

	s, err := m.store.FindUpload(ctx, uploadID)
	if err != nil {
		return storeError(op, uploadID, err)
	}

	remoteErr := m.abortRemote(ctx, s.StorageKey, s.UploadID)

	if err := m.store.DeleteUpload(ctx, uploadID); err != nil {
		return storeError(op, uploadID, err)
	}

	if remoteErr != nil {
		logging.Warn("remote abort failed, session dropped", logging.Fields{
			"upload_id": uploadID,
			"key":       s.StorageKey,
			"error":     remoteErr.Error(),
		})
		return newError(KindObjectStore, op, uploadID, remoteErr)
	}

	logging.Info("upload aborted", logging.Fields{"upload_id": uploadID})
	return nil
}

// abortRemote aborts the upload in the object store, retrying up to
// AbortRetries times. An upload the store no longer knows is already gone.
func (m *Manager) abortRemote(ctx context.Context, key, uploadID string) error {
	attempt := func() error {
		rctx, cancel := m.remoteContext(ctx)
		defer cancel()
		err := m.objects.AbortMultipartUpload(rctx, key, uploadID)
		if err != nil && remoteStatus(err) == http.StatusNotFound {
			return nil
		}
		return err
	}

	if m.cfg.AbortRetries == 0 {
		return attempt()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.cfg.AbortRetryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, m.cfg.AbortRetries), ctx)
	return backoff.Retry(attempt, b)
}

func sortParts(parts []Part) {
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})
}
