package upload

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	err := newError(KindCompletion, "complete_upload", "mpu-1", remoteErr{status: http.StatusBadRequest})
	wrapped := fmt.Errorf("handler: %w", err)

	assert.ErrorIs(t, wrapped, ErrCompletion)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, KindCompletion, KindOf(wrapped))
	assert.Equal(t, http.StatusBadRequest, err.Status)

	var rc remoteErr
	assert.ErrorAs(t, wrapped, &rc)
}

func TestStoreErrorMapping(t *testing.T) {
	nf := storeError("get_upload", "x", fmt.Errorf("query: %w", ErrRecordNotFound))
	assert.ErrorIs(t, nf, ErrNotFound)

	pe := storeError("get_upload", "x", errors.New("conn refused"))
	assert.ErrorIs(t, pe, ErrPersistence)
}

func TestErrorMessage(t *testing.T) {
	err := newError(KindObjectStore, "abort_upload", "mpu-9", remoteErr{status: 503})
	assert.Equal(t, "abort_upload: object_store_error (mpu-9) status=503: remote status 503", err.Error())

	assert.Equal(t, "validation_error: bad", (&Error{Kind: KindValidation, Err: errors.New("bad")}).Error())
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
