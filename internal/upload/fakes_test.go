package upload

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	parts    map[string]map[int]string
	files    map[string]FileMetadata

	createErr   error
	finalizeErr error
	insertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]Session{},
		parts:    map[string]map[int]string{},
		files:    map[string]FileMetadata{},
	}
}

func (f *fakeStore) CreateUpload(_ context.Context, s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.sessions[s.UploadID] = s
	return nil
}

func (f *fakeStore) FindUpload(_ context.Context, id string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return Session{}, ErrRecordNotFound
	}
	return s, nil
}

func (f *fakeStore) ListParts(_ context.Context, id string) ([]Part, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Part
	for n, etag := range f.parts[id] {
		out = append(out, Part{UploadID: id, PartNumber: n, ETag: etag})
	}
	// descending, so the manager's own ordering is what gets tested
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber > out[j].PartNumber })
	return out, nil
}

func (f *fakeStore) UpsertPart(_ context.Context, id string, n int, etag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return ErrRecordNotFound
	}
	if f.parts[id] == nil {
		f.parts[id] = map[int]string{}
	}
	f.parts[id][n] = etag
	s.UpdatedAt = time.Now().UTC()
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) DeleteUpload(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return ErrRecordNotFound
	}
	delete(f.sessions, id)
	delete(f.parts, id)
	return nil
}

func (f *fakeStore) FinalizeUpload(_ context.Context, id string, meta FileMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	if _, ok := f.sessions[id]; !ok {
		return ErrRecordNotFound
	}
	delete(f.sessions, id)
	delete(f.parts, id)
	f.files[meta.ID] = meta
	return nil
}

func (f *fakeStore) ListStaleUploads(_ context.Context, before time.Time, limit int) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Session
	for _, s := range f.sessions {
		if s.UpdatedAt.Before(before) {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) InsertFileMetadata(_ context.Context, meta FileMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.files[meta.ID] = meta
	return nil
}

func (f *fakeStore) FindFileMetadata(_ context.Context, id string) (FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.files[id]
	if !ok {
		return FileMetadata{}, ErrRecordNotFound
	}
	return meta, nil
}

func (f *fakeStore) ListFileMetadata(_ context.Context, owner string) ([]FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FileMetadata
	for _, meta := range f.files {
		if owner == "" || meta.OwnerID == owner {
			out = append(out, meta)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteFileMetadata(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[id]; !ok {
		return ErrRecordNotFound
	}
	delete(f.files, id)
	return nil
}

type remoteErr struct {
	status int
}

func (e remoteErr) Error() string   { return fmt.Sprintf("remote status %d", e.status) }
func (e remoteErr) StatusCode() int { return e.status }

type presignCall struct {
	key, uploadID string
	partNumber    int
	ttl           time.Duration
}

type fakeObjects struct {
	mu sync.Mutex

	seq       int
	initiated []string
	completed [][]Part
	aborted   []string
	presigned []presignCall
	puts      map[string][]byte
	removed   []string

	initErr     error
	presignErr  error
	completeErr error
	abortErrs   []error
	putErr      error
	removeErr   error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{puts: map[string][]byte{}}
}

func (f *fakeObjects) InitiateMultipartUpload(_ context.Context, key, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return "", f.initErr
	}
	f.seq++
	f.initiated = append(f.initiated, key)
	return fmt.Sprintf("mpu-%d", f.seq), nil
}

func (f *fakeObjects) PresignPartURL(_ context.Context, key, uploadID string, n int, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.presigned = append(f.presigned, presignCall{key, uploadID, n, ttl})
	return fmt.Sprintf("https://objects.test/%s?partNumber=%d&uploadId=%s", key, n, uploadID), nil
}

func (f *fakeObjects) CompleteMultipartUpload(_ context.Context, _, _ string, parts []Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, append([]Part(nil), parts...))
	return f.completeErr
}

func (f *fakeObjects) AbortMultipartUpload(_ context.Context, _, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, uploadID)
	if len(f.abortErrs) > 0 {
		err := f.abortErrs[0]
		f.abortErrs = f.abortErrs[1:]
		return err
	}
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.puts[key] = b
	return nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return f.removeErr
}
