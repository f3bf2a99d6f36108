package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/jobs"
	"github.com/sngdarren/mr-team/pkg/log"
)

type generateResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type statusResponse struct {
	JobID          string                `json:"job_id"`
	Status         jobs.Status           `json:"status"`
	Videos         []string              `json:"videos"`
	PartialFailure bool                  `json:"partial_failure"`
	Segments       []jobs.SegmentOutcome `json:"segments,omitempty"`
	Error          string                `json:"error,omitempty"`
}

type videoListResponse struct {
	JobID  string   `json:"job_id"`
	Videos []string `json:"videos"`
	Count  int      `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mr-team",
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a pdf field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pdf file is required")
		return
	}
	defer upload.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are allowed")
		return
	}

	id := s.newID()
	docPath := filepath.Join(s.uploadDir, id+".pdf")
	if err := saveUpload(upload, docPath); err != nil {
		log.Error("Failed to store upload %s: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	job, err := s.queue.Enqueue(jobs.EnqueueRequest{
		ID: id,
		Payload: jobs.Payload{
			DocumentPath: docPath,
			OriginalName: header.Filename,
			WorkDir:      filepath.Join(s.workDir, id),
		},
	})
	if err != nil {
		_ = os.Remove(docPath)
		writeAppError(w, err)
		return
	}

	log.Info("Accepted %s as job %s", header.Filename, job.ID)
	writeJSON(w, http.StatusAccepted, generateResponse{
		JobID:   job.ID,
		Message: "PDF uploaded, video generation started",
	})
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := s.queue.Registry().Get(r.PathValue("job_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(job))
}

func newStatusResponse(job *jobs.Job) statusResponse {
	videos := job.Videos
	if videos == nil {
		videos = []string{}
	}
	return statusResponse{
		JobID:          job.ID,
		Status:         job.Status,
		Videos:         videos,
		PartialFailure: job.PartialFailure,
		Segments:       job.Segments,
		Error:          job.Error,
	}
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := r.PathValue("job_id")
	ids, ok := s.queue.Registry().Videos(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, videoListResponse{
		JobID:  jobID,
		Videos: ids,
		Count:  len(ids),
	})
}

// statusFor maps an error kind to the response code callers see.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrInputValidation, apperr.ErrEmptyInput:
		return http.StatusBadRequest
	case apperr.ErrNotFound, apperr.ErrFileNotFound:
		return http.StatusNotFound
	case apperr.ErrAlreadyExists, apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrRemoteService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
