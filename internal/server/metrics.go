package server

import (
	"sync"
)

// Metrics holds process-wide counters for the upload API.
type Metrics struct {
	mu sync.RWMutex

	uploadsCreated    int64
	uploadsCompleted  int64
	uploadsAborted    int64
	completionFailed  int64
	partsRegistered   int64
	partURLsIssued    int64
	bytesCompleted    int64
	filesUploaded     int64
	filesDeleted      int64
	directUploadBytes int64

	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

func (m *Metrics) RecordUploadCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsCreated++
}

// RecordUploadCompleted counts a finalized multipart upload of size bytes.
func (m *Metrics) RecordUploadCompleted(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsCompleted++
	m.bytesCompleted += size
}

func (m *Metrics) RecordCompletionFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFailed++
}

func (m *Metrics) RecordUploadAborted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsAborted++
}

func (m *Metrics) RecordPartRegistered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partsRegistered++
}

func (m *Metrics) RecordPartURLIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partURLsIssued++
}

func (m *Metrics) RecordFileUploaded(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filesUploaded++
	m.directUploadBytes += size
}

func (m *Metrics) RecordFileDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filesDeleted++
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsCreated:    m.uploadsCreated,
		UploadsCompleted:  m.uploadsCompleted,
		UploadsAborted:    m.uploadsAborted,
		CompletionFailed:  m.completionFailed,
		PartsRegistered:   m.partsRegistered,
		PartURLsIssued:    m.partURLsIssued,
		BytesCompleted:    m.bytesCompleted,
		FilesUploaded:     m.filesUploaded,
		FilesDeleted:      m.filesDeleted,
		DirectUploadBytes: m.directUploadBytes,
		RequestsTotal:     m.requestsTotal,
		RequestErrors5xx:  m.requestErrors5xx,
		RequestErrors4xx:  m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsCreated    int64 `json:"uploads_created_total"`
	UploadsCompleted  int64 `json:"uploads_completed_total"`
	UploadsAborted    int64 `json:"uploads_aborted_total"`
	CompletionFailed  int64 `json:"upload_completion_failures_total"`
	PartsRegistered   int64 `json:"parts_registered_total"`
	PartURLsIssued    int64 `json:"part_urls_issued_total"`
	BytesCompleted    int64 `json:"upload_bytes_total"`
	FilesUploaded     int64 `json:"direct_uploads_total"`
	FilesDeleted      int64 `json:"files_deleted_total"`
	DirectUploadBytes int64 `json:"direct_upload_bytes_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}
