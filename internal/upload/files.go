package upload

import (
	"context"
	"io"
	"strings"

	"admin-backend/internal/logging"
)

// GetFile returns the metadata of a completed file.
func (m *Manager) GetFile(ctx context.Context, fileID string) (FileMetadata, error) {
	meta, err := m.store.FindFileMetadata(ctx, fileID)
	if err != nil {
		return FileMetadata{}, storeError("get_file", fileID, err)
	}
	return m.withURL(meta), nil
}

// ListFiles lists completed files of ownerID, or all files when ownerID is
// empty, newest first.
func (m *Manager) ListFiles(ctx context.Context, ownerID string) ([]FileMetadata, error) {
	files, err := m.store.ListFileMetadata(ctx, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, storeError("list_files", ownerID, err)
	}
	for i := range files {
		files[i] = m.withURL(files[i])
	}
	return files, nil
}

// DeleteFile removes the object and then its metadata. When the object store
// refuses, the metadata is kept so the delete can be retried.
func (m *Manager) DeleteFile(ctx context.Context, fileID string) error {
	const op = "delete_file"

	meta, err := m.store.FindFileMetadata(ctx, fileID)
	if err != nil {
		return storeError(op, fileID, err)
	}

	rctx, cancel := m.remoteContext(ctx)
	err = m.objects.RemoveObject(rctx, fileKey(meta))
	cancel()
	if err != nil {
		return newError(KindObjectStore, op, fileID, err)
	}

	if err := m.store.DeleteFileMetadata(ctx, fileID); err != nil {
		return storeError(op, fileID, err)
	}

	logging.Info("file deleted", logging.Fields{"file_id": fileID, "key": fileKey(meta)})
	return nil
}

// UploadFile stores a small file with a single PUT and records its metadata.
// req.DeclaredSize must be the exact length of body.
func (m *Manager) UploadFile(ctx context.Context, req CreateRequest, body io.Reader, by Attribution) (FileMetadata, error) {
	const op = "upload_file"

	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		return FileMetadata{}, validationError(op, "owner_id is required")
	}
	if req.DeclaredSize < 0 {
		return FileMetadata{}, validationError(op, "size must not be negative")
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
	err := m.objects.PutObject(rctx, key, body, req.DeclaredSize, contentType)
	cancel()
	if err != nil {
		return FileMetadata{}, newError(KindObjectStore, op, fileID, err)
	}

	meta := FileMetadata{
		ID:                 fileID,
		OwnerID:            owner,
		Filename:           filename,
		ContentType:        contentType,
		Size:               req.DeclaredSize,
		StorageKey:         key,
		URL:                PublicURL(m.cfg.PublicBaseURL, key),
		UploadedAt:         m.now().UTC(),
		UploaderUsername:   strings.TrimSpace(by.Username),
		UploaderGlobalName: strings.TrimSpace(by.GlobalName),
		UploaderAvatarURL:  strings.TrimSpace(by.AvatarURL),
	}

	if err := m.store.InsertFileMetadata(ctx, meta); err != nil {
		rctx, cancel := m.remoteContext(context.WithoutCancel(ctx))
		if rerr := m.objects.RemoveObject(rctx, key); rerr != nil {
			logging.Error("orphaned object removal failed", logging.Fields{"key": key}, rerr)
		}
		cancel()
		return FileMetadata{}, newError(KindPersistence, op, fileID, err)
	}

	logging.Info("file uploaded", logging.Fields{
		"file_id":  fileID,
		"owner_id": owner,
		"size":     req.DeclaredSize,
	})
	return meta, nil
}

// fileKey returns the object key of meta, rebuilding it for rows written
// before the key was stored.
func fileKey(meta FileMetadata) string {
	if meta.StorageKey != "" {
		return meta.StorageKey
	}
	return StorageKey(meta.OwnerID, meta.ID, meta.Filename)
}

func (m *Manager) withURL(meta FileMetadata) FileMetadata {
	if meta.URL == "" {
		meta.URL = PublicURL(m.cfg.PublicBaseURL, fileKey(meta))
	}
	return meta
}
