// Package objectstore implements the multipart-upload client the upload
// manager talks to, on top of MinIO or any S3-compatible API (AWS S3,
// Cloudflare R2).
package objectstore

import (
	"errors"
	"fmt"
)

// Error describes a failed object store call.
type Error struct {
	// Op is the operation that failed (e.g. "initiate", "complete").
	Op string

	Bucket string
	Key    string

	// Status is the HTTP status the store answered with, 0 if none.
	Status int

	// Code is the S3 error code, e.g. "NoSuchUpload" or "InvalidPart".
	Code string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("objectstore.%s %s/%s", e.Op, e.Bucket, e.Key)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the remote HTTP status.
func (e *Error) StatusCode() int {
	return e.Status
}

// ErrBucketNotFound is returned at construction when the bucket is missing.
var ErrBucketNotFound = errors.New("objectstore: bucket does not exist")
