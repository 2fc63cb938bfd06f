package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"admin-backend/internal/audit"
	"admin-backend/internal/upload"
)

// Memory is a process-local store for development without Postgres and for
// tests. A single mutex makes every operation, including FinalizeUpload,
// atomic.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]upload.Session
	parts    map[string]map[int]upload.Part
	files    map[string]upload.FileMetadata
	audit    []audit.Entry
	now      func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]upload.Session),
		parts:    make(map[string]map[int]upload.Part),
		files:    make(map[string]upload.FileMetadata),
		now:      time.Now,
	}
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) CreateUpload(_ context.Context, s upload.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UploadID] = s
	return nil
}

func (m *Memory) FindUpload(_ context.Context, uploadID string) (upload.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uploadID]
	if !ok {
		return upload.Session{}, upload.ErrRecordNotFound
	}
	return s, nil
}

func (m *Memory) ListParts(_ context.Context, uploadID string) ([]upload.Part, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := make([]upload.Part, 0, len(m.parts[uploadID]))
	for _, p := range m.parts[uploadID] {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}

func (m *Memory) UpsertPart(_ context.Context, uploadID string, partNumber int, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uploadID]
	if !ok {
		return upload.ErrRecordNotFound
	}
	now := m.now().UTC()
	s.UpdatedAt = now
	m.sessions[uploadID] = s

	if m.parts[uploadID] == nil {
		m.parts[uploadID] = make(map[int]upload.Part)
	}
	m.parts[uploadID][partNumber] = upload.Part{UploadID: uploadID, PartNumber: partNumber, ETag: etag, UpdatedAt: now}
	return nil
}

func (m *Memory) DeleteUpload(_ context.Context, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteUploadLocked(uploadID)
}

func (m *Memory) deleteUploadLocked(uploadID string) error {
	if _, ok := m.sessions[uploadID]; !ok {
		return upload.ErrRecordNotFound
	}
	delete(m.sessions, uploadID)
	delete(m.parts, uploadID)
	return nil
}

func (m *Memory) FinalizeUpload(_ context.Context, uploadID string, meta upload.FileMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteUploadLocked(uploadID); err != nil {
		return err
	}
	m.files[meta.ID] = meta
	return nil
}

func (m *Memory) ListStaleUploads(_ context.Context, before time.Time, limit int) ([]upload.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []upload.Session
	for _, s := range m.sessions {
		if s.UpdatedAt.Before(before) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) InsertFileMetadata(_ context.Context, meta upload.FileMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[meta.ID] = meta
	return nil
}

func (m *Memory) FindFileMetadata(_ context.Context, fileID string) (upload.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.files[fileID]
	if !ok {
		return upload.FileMetadata{}, upload.ErrRecordNotFound
	}
	return meta, nil
}

func (m *Memory) ListFileMetadata(_ context.Context, ownerID string) ([]upload.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := []upload.FileMetadata{}
	for _, meta := range m.files {
		if ownerID == "" || meta.OwnerID == ownerID {
			files = append(files, meta)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].UploadedAt.After(files[j].UploadedAt) })
	return files, nil
}

func (m *Memory) DeleteFileMetadata(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[fileID]; !ok {
		return upload.ErrRecordNotFound
	}
	delete(m.files, fileID)
	return nil
}

func (m *Memory) InsertAuditLog(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) ListAuditLogs(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := []audit.Entry{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		if f.ResourceID != "" && e.ResourceID != f.ResourceID {
			continue
		}
		entries = append(entries, e)
		if f.Limit > 0 && len(entries) == f.Limit {
			break
		}
	}
	return entries, nil
}
