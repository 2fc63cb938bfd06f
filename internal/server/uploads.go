package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"admin-backend/internal/audit"
	"admin-backend/internal/upload"
)

type createUploadReq struct {
	UserID      string `json:"user_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type uploadResp struct {
	upload.Session
	Parts []upload.Part `json:"parts"`
}

type partURLResp struct {
	URL        string `json:"url"`
	PartNumber int    `json:"part_number"`
	ExpiresIn  int    `json:"expires_in"`
}

type registerPartReq struct {
	ETag string `json:"etag"`
}

func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	var req createUploadReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, string(upload.KindValidation), "invalid JSON body")
		return
	}

	sess, err := s.manager.CreateUpload(r.Context(), upload.CreateRequest{
		OwnerID:      req.UserID,
		Filename:     req.Filename,
		ContentType:  req.ContentType,
		DeclaredSize: req.Size,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	GetMetrics().RecordUploadCreated()
	s.audit.Record(r.Context(), audit.ActorFromRequest(r), audit.ResourceUpload, sess.UploadID, audit.ActionCreate, nil, sess)
	writeJSON(w, http.StatusCreated, uploadResp{Session: sess, Parts: []upload.Part{}})
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	sess, parts, err := s.manager.GetUpload(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if parts == nil {
		parts = []upload.Part{}
	}
	writeJSON(w, http.StatusOK, uploadResp{Session: sess, Parts: parts})
}

// partNumberParam parses the {partNumber} path segment. Range checks are
// left to the manager.
func partNumberParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "partNumber"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, string(upload.KindValidation), "part number must be an integer")
		return 0, false
	}
	return n, true
}

func (s *Server) handlePartURL(w http.ResponseWriter, r *http.Request) {
	n, ok := partNumberParam(w, r)
	if !ok {
		return
	}

	u, err := s.manager.PartUploadURL(r.Context(), chi.URLParam(r, "uploadID"), n)
	if err != nil {
		writeError(w, r, err)
		return
	}

	GetMetrics().RecordPartURLIssued()
	writeJSON(w, http.StatusOK, partURLResp{
		URL:        u,
		PartNumber: n,
		ExpiresIn:  int(s.manager.Config().PresignTTL.Seconds()),
	})
}

func (s *Server) handleRegisterPart(w http.ResponseWriter, r *http.Request) {
	n, ok := partNumberParam(w, r)
	if !ok {
		return
	}

	var req registerPartReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, string(upload.KindValidation), "invalid JSON body")
		return
	}

	if err := s.manager.RegisterPart(r.Context(), chi.URLParam(r, "uploadID"), n, req.ETag); err != nil {
		writeError(w, r, err)
		return
	}

	GetMetrics().RecordPartRegistered()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	actor := audit.ActorFromRequest(r)

	meta, err := s.manager.CompleteUpload(r.Context(), uploadID, upload.Attribution{
		Username:   actor.Username,
		GlobalName: actor.GlobalName,
		AvatarURL:  actor.AvatarURL,
	})
	if err != nil {
		if upload.KindOf(err) == upload.KindCompletion {
			GetMetrics().RecordCompletionFailed()
		}
		writeError(w, r, err)
		return
	}

	GetMetrics().RecordUploadCompleted(meta.Size)
	s.audit.Record(r.Context(), actor, audit.ResourceUpload, uploadID, audit.ActionComplete, nil, meta)
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleAbortUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	before, _, err := s.manager.GetUpload(r.Context(), uploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = s.manager.AbortUpload(r.Context(), uploadID)
	// The session is gone locally even when the remote abort failed.
	if err == nil || upload.KindOf(err) == upload.KindObjectStore {
		GetMetrics().RecordUploadAborted()
		s.audit.Record(r.Context(), audit.ActorFromRequest(r), audit.ResourceUpload, uploadID, audit.ActionAbort, before, nil)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
