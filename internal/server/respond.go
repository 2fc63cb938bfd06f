package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"admin-backend/internal/logging"
	"admin-backend/internal/upload"
)

type errorBody struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("response encode failed", logging.Fields{"error": err.Error()})
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Status: status, Code: code, Message: msg})
}

// statusForKind maps manager error kinds onto HTTP statuses.
func statusForKind(kind upload.Kind) int {
	switch kind {
	case upload.KindNotFound:
		return http.StatusNotFound
	case upload.KindValidation:
		return http.StatusBadRequest
	case upload.KindObjectStore, upload.KindCompletion:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a manager error. Persistence failures are logged and
// hidden from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *upload.Error
	if !errors.As(err, &ue) {
		logging.Error("request failed", logging.Fields{
			"rid":  RequestIDFromContext(r.Context()),
			"path": r.URL.Path,
		}, err)
		writeErrorCode(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	status := statusForKind(ue.Kind)
	msg := err.Error()
	if status >= 500 {
		logging.Error("request failed", logging.Fields{
			"rid":  RequestIDFromContext(r.Context()),
			"path": r.URL.Path,
			"kind": string(ue.Kind),
		}, err)
		if ue.Kind == upload.KindPersistence {
			msg = "persistence failure"
		}
	}
	writeErrorCode(w, status, string(ue.Kind), msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
