package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"admin-backend/internal/audit"
	"admin-backend/internal/upload"
)

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.manager.ListFiles(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if files == nil {
		files = []upload.FileMetadata{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	meta, err := s.manager.GetFile(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	before, err := s.manager.GetFile(r.Context(), fileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.manager.DeleteFile(r.Context(), fileID); err != nil {
		writeError(w, r, err)
		return
	}

	GetMetrics().RecordFileDeleted()
	s.audit.Record(r.Context(), audit.ActorFromRequest(r), audit.ResourceFile, fileID, audit.ActionDelete, before, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadFile stores a small file sent as multipart/form-data in the
// "file" field. The owner comes from ?user_id= or the user_id form field.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxDirect+1<<20)

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(w, http.StatusRequestEntityTooLarge, string(upload.KindValidation), "file too large, use a multipart upload")
			return
		}
		writeErrorCode(w, http.StatusBadRequest, string(upload.KindValidation), "expected multipart/form-data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, string(upload.KindValidation), "missing form field \"file\"")
		return
	}
	defer file.Close()

	if header.Size > s.maxDirect {
		writeErrorCode(w, http.StatusRequestEntityTooLarge, string(upload.KindValidation), "file too large, use a multipart upload")
		return
	}

	owner := r.URL.Query().Get("user_id")
	if owner == "" {
		owner = r.FormValue("user_id")
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	actor := audit.ActorFromRequest(r)

	meta, err := s.manager.UploadFile(r.Context(), upload.CreateRequest{
		OwnerID:      owner,
		Filename:     header.Filename,
		ContentType:  contentType,
		DeclaredSize: header.Size,
	}, file, upload.Attribution{
		Username:   actor.Username,
		GlobalName: actor.GlobalName,
		AvatarURL:  actor.AvatarURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	GetMetrics().RecordFileUploaded(meta.Size)
	s.audit.Record(r.Context(), actor, audit.ResourceFile, meta.ID, audit.ActionUpload, nil, meta)
	writeJSON(w, http.StatusCreated, meta)
}
