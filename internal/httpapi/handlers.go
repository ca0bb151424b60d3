package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Suriyanand/financial-document-analyzer/internal/jobs"
	"github.com/Suriyanand/financial-document-analyzer/internal/service"
	"github.com/Suriyanand/financial-document-analyzer/pkg/log"
)

type submitResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

type statusResponse struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

// handleAnalyze accepts a multipart document upload plus an optional query
// form field, stores the file under the uploads dir and submits a job.
// Always returns promptly with 202 semantics; the analysis itself runs in
// the worker pool.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	query := r.FormValue("query")

	destPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		log.Error("Failed to store upload %s: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "could not store uploaded document")
		return
	}

	jobID, err := s.manager.Submit(r.Context(), destPath, query)
	if err != nil {
		// The job was not created; drop the stored document too.
		if rmErr := os.Remove(destPath); rmErr != nil {
			log.Warn("Failed to remove upload for rejected submission: %v", rmErr)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		Message: "Analysis has been started.",
		JobID:   jobID,
	})
}

func (s *Server) saveUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(originalName))
	destPath := filepath.Join(s.uploadsDir, name)

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return destPath, nil
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	list, err := s.manager.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleJobByID serves /api/jobs/{id}/status and /api/jobs/{id}/result.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	path = strings.TrimSuffix(path, "/")
	jobID, op, ok := strings.Cut(path, "/")
	if !ok || jobID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if decoded, err := url.PathUnescape(jobID); err == nil {
		jobID = decoded
	}

	switch op {
	case "status":
		status, err := s.manager.GetStatus(r.Context(), jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{JobID: jobID, Status: status})
	case "result":
		outcome, err := s.manager.GetResult(r.Context(), jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var analyzerErr *service.AnalyzerError
	if !errors.As(err, &analyzerErr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch analyzerErr.Type {
	case service.ErrValidation:
		writeError(w, http.StatusBadRequest, analyzerErr.Message)
	case service.ErrNotFound:
		writeError(w, http.StatusNotFound, analyzerErr.Message)
	case service.ErrOverloaded:
		writeError(w, http.StatusServiceUnavailable, analyzerErr.Message)
	default:
		writeError(w, http.StatusInternalServerError, analyzerErr.Message)
	}
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
