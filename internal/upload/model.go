// Package upload coordinates resumable multipart uploads between clients,
// the relational session store and an S3-compatible object store.
//
// The Manager never moves file bytes itself. Clients upload each part
// straight to the object store through presigned URLs and report the
// returned ETag back; the Manager only keeps the bookkeeping consistent
// and drives the initiate / complete / abort protocol.
package upload

import (
	"context"
	"io"
	"time"
)

// Session is one in-flight multipart upload. The row exists only while the
// upload is neither completed nor aborted.
type Session struct {
	UploadID     string    `json:"upload_id"`
	FileID       string    `json:"file_id"`
	OwnerID      string    `json:"owner_id"`
	StorageKey   string    `json:"key"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	DeclaredSize int64     `json:"size"`
	PartSize     int64     `json:"part_size"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Part is a client-reported chunk. At most one exists per (UploadID, PartNumber).
type Part struct {
	UploadID   string    `json:"-"`
	PartNumber int       `json:"part_number"`
	ETag       string    `json:"etag"`
	UpdatedAt  time.Time `json:"-"`
}

// FileMetadata is the durable record of a finished file.
type FileMetadata struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"user_id"`
	Filename           string    `json:"filename"`
	ContentType        string    `json:"content_type"`
	Size               int64     `json:"size"`
	StorageKey         string    `json:"-"`
	URL                string    `json:"url"`
	UploadedAt         time.Time `json:"uploaded_at"`
	UploaderUsername   string    `json:"uploader_username,omitempty"`
	UploaderGlobalName string    `json:"uploader_global_name,omitempty"`
	UploaderAvatarURL  string    `json:"uploader_avatar_url,omitempty"`
}

// Attribution identifies who finished an upload. All fields are optional.
type Attribution struct {
	Username   string
	GlobalName string
	AvatarURL  string
}

// CreateRequest carries the caller-declared metadata of a new upload.
type CreateRequest struct {
	OwnerID      string
	Filename     string
	ContentType  string
	DeclaredSize int64
}

// SessionStore is the durable record of upload sessions and their parts.
//
// Implementations report missing rows with an error matching
// ErrRecordNotFound.
type SessionStore interface {
	CreateUpload(ctx context.Context, s Session) error
	FindUpload(ctx context.Context, uploadID string) (Session, error)
	// ListParts returns parts in ascending PartNumber order.
	ListParts(ctx context.Context, uploadID string) ([]Part, error)
	// UpsertPart records the etag for a part number, replacing any previous
	// one, and bumps the session's UpdatedAt.
	UpsertPart(ctx context.Context, uploadID string, partNumber int, etag string) error
	// DeleteUpload removes the session and, transitively, its parts.
	DeleteUpload(ctx context.Context, uploadID string) error
	// FinalizeUpload deletes the session and inserts meta as one atomic
	// step. It returns ErrRecordNotFound when the session was already gone,
	// in which case meta is not inserted.
	FinalizeUpload(ctx context.Context, uploadID string, meta FileMetadata) error
	// ListStaleUploads returns sessions not updated since before.
	ListStaleUploads(ctx context.Context, before time.Time, limit int) ([]Session, error)
}

// FileStore is the catalog of completed files.
type FileStore interface {
	InsertFileMetadata(ctx context.Context, meta FileMetadata) error
	FindFileMetadata(ctx context.Context, fileID string) (FileMetadata, error)
	// ListFileMetadata lists every file when ownerID is empty.
	ListFileMetadata(ctx context.Context, ownerID string) ([]FileMetadata, error)
	DeleteFileMetadata(ctx context.Context, fileID string) error
}

// Store is everything the Manager persists.
type Store interface {
	SessionStore
	FileStore
}

// ObjectStore is the remote multipart-upload API.
type ObjectStore interface {
	InitiateMultipartUpload(ctx context.Context, key, contentType string) (uploadID string, err error)
	PresignPartURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, error)
	// CompleteMultipartUpload assembles the object from parts, which the
	// caller passes in ascending PartNumber order.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []Part) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, key string) error
}
