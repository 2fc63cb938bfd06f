// Package audit records who changed what. Entries are written best effort:
// a failing sink is logged and never fails the request that caused it.
package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"admin-backend/internal/logging"
)

// Action is the kind of change being audited.
type Action string

const (
	ActionCreate   Action = "create"
	ActionComplete Action = "complete"
	ActionAbort    Action = "abort"
	ActionUpload   Action = "upload"
	ActionDelete   Action = "delete"
)

// Resource types.
const (
	ResourceUpload = "upload"
	ResourceFile   = "file"
)

// Actor is the person acting through the admin panel.
type Actor struct {
	DiscordID  string `json:"discord_id,omitempty"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// Entry is one audit log row.
type Entry struct {
	ID           string          `json:"id"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Action       Action          `json:"action"`
	Before       json.RawMessage `json:"before_data,omitempty"`
	After        json.RawMessage `json:"after_data,omitempty"`
	Actor        Actor           `json:"actor"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Filter narrows ListAuditLogs.
type Filter struct {
	ResourceType string
	ResourceID   string
	Limit        int
}

// Sink persists entries.
type Sink interface {
	InsertAuditLog(ctx context.Context, e Entry) error
	ListAuditLogs(ctx context.Context, f Filter) ([]Entry, error)
}

// Actor headers set by the admin panel proxy.
const (
	HeaderActorID         = "X-Actor-Discord-Id"
	HeaderActorUsername   = "X-Actor-Username"
	HeaderActorGlobalName = "X-Actor-Global-Name"
	HeaderActorAvatar     = "X-Actor-Avatar"
)

// ActorFromRequest reads the acting user from URL-encoded request headers.
// A missing username becomes "unknown".
func ActorFromRequest(r *http.Request) Actor {
	a := Actor{
		DiscordID:  headerValue(r, HeaderActorID),
		Username:   headerValue(r, HeaderActorUsername),
		GlobalName: headerValue(r, HeaderActorGlobalName),
		AvatarURL:  headerValue(r, HeaderActorAvatar),
	}
	if a.Username == "" {
		a.Username = "unknown"
	}
	return a
}

func headerValue(r *http.Request, name string) string {
	v := strings.TrimSpace(r.Header.Get(name))
	if v == "" {
		return ""
	}
	if decoded, err := url.QueryUnescape(v); err == nil {
		return decoded
	}
	return v
}

// Recorder writes entries to a Sink. A nil Recorder or a Recorder without a
// sink only logs.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder returns a Recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, now: time.Now}
}

// Record stores an entry. before and after are marshalled to JSON; nil
// values are omitted.
func (r *Recorder) Record(ctx context.Context, actor Actor, resourceType, resourceID string, action Action, before, after interface{}) {
	if r == nil || r.sink == nil {
		return
	}

	e := Entry{
		ID:           uuid.New().String(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Before:       marshal(before),
		After:        marshal(after),
		Actor:        actor,
		CreatedAt:    r.now().UTC(),
	}

	if err := r.sink.InsertAuditLog(context.WithoutCancel(ctx), e); err != nil {
		logging.Warn("audit log write failed", logging.Fields{
			"resource_type": resourceType,
			"resource_id":   resourceID,
			"action":        string(action),
			"error":         err.Error(),
		})
	}
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, f Filter) ([]Entry, error) {
	if r == nil || r.sink == nil {
		return []Entry{}, nil
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return r.sink.ListAuditLogs(ctx, f)
}

func marshal(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
