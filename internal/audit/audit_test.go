package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

type memSink struct {
	entries []Entry
	err     error
	filter  Filter
}

func (m *memSink) InsertAuditLog(_ context.Context, e Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memSink) ListAuditLogs(_ context.Context, f Filter) ([]Entry, error) {
	m.filter = f
	return m.entries, nil
}

func TestActorFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(HeaderActorID, "123456789")
	r.Header.Set(HeaderActorUsername, "steve")
	r.Header.Set(HeaderActorGlobalName, "Steve%20the%20Builder")
	r.Header.Set(HeaderActorAvatar, "https%3A%2F%2Fcdn.example.com%2Fa.png")

	a := ActorFromRequest(r)
	if a.DiscordID != "123456789" || a.Username != "steve" {
		t.Fatalf("unexpected actor: %+v", a)
	}
	if a.GlobalName != "Steve the Builder" {
		t.Errorf("GlobalName = %q", a.GlobalName)
	}
	if a.AvatarURL != "https://cdn.example.com/a.png" {
		t.Errorf("AvatarURL = %q", a.AvatarURL)
	}
}

func TestActorFromRequestDefaults(t *testing.T) {
	a := ActorFromRequest(httptest.NewRequest("GET", "/", nil))
	if a.Username != "unknown" {
		t.Fatalf("Username = %q, want unknown", a.Username)
	}
	if a.DiscordID != "" || a.GlobalName != "" || a.AvatarURL != "" {
		t.Fatalf("unexpected actor fields: %+v", a)
	}
}

func TestRecorderRecord(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder(sink)

	rec.Record(context.Background(), Actor{Username: "admin"}, ResourceFile, "f1", ActionDelete, map[string]string{"filename": "a.txt"}, nil)

	if len(sink.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(sink.entries))
	}
	e := sink.entries[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Errorf("id/created_at not set: %+v", e)
	}
	if string(e.Before) != `{"filename":"a.txt"}` {
		t.Errorf("Before = %s", e.Before)
	}
	if e.After != nil {
		t.Errorf("After = %s, want nil", e.After)
	}
}

func TestRecorderSwallowsSinkErrors(t *testing.T) {
	rec := NewRecorder(&memSink{err: errors.New("db down")})
	rec.Record(context.Background(), Actor{Username: "admin"}, ResourceUpload, "u1", ActionAbort, nil, nil)

	var nilRec *Recorder
	nilRec.Record(context.Background(), Actor{}, ResourceUpload, "u1", ActionAbort, nil, nil)
}

func TestRecorderListClampsLimit(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder(sink)

	if _, err := rec.List(context.Background(), Filter{Limit: 10000}); err != nil {
		t.Fatal(err)
	}
	if sink.filter.Limit != 100 {
		t.Fatalf("limit = %d, want 100", sink.filter.Limit)
	}
}
