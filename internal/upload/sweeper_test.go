package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepStale(t *testing.T) {
	m, st, obj := newTestManager(t, Config{})
	ctx := context.Background()

	old := createUpload(t, m)
	fresh := createUpload(t, m)

	// Age the first session.
	s := st.sessions[old.UploadID]
	s.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	st.sessions[old.UploadID] = s

	n, err := m.SweepStale(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotContains(t, st.sessions, old.UploadID)
	assert.Contains(t, st.sessions, fresh.UploadID)
	assert.Equal(t, []string{old.UploadID}, obj.aborted)
}

func TestSweepCountsRemoteFailures(t *testing.T) {
	m, st, obj := newTestManager(t, Config{})
	old := createUpload(t, m)
	s := st.sessions[old.UploadID]
	s.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	st.sessions[old.UploadID] = s
	obj.abortErrs = []error{errors.New("unreachable")}

	n, err := m.SweepStale(context.Background(), time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, st.sessions)
}

func TestStartSweeperStopsOnCancel(t *testing.T) {
	m, _, _ := newTestManager(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.StartSweeper(ctx, SweeperConfig{Enabled: true, Interval: time.Hour, MaxAge: time.Hour})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestStartSweeperDisabledReturns(t *testing.T) {
	m, _, _ := newTestManager(t, Config{})
	m.StartSweeper(context.Background(), SweeperConfig{})
}
