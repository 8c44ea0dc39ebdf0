package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/vodgrabba/internal/domain"
	"github.com/iconidentify/vodgrabba/internal/repository"
	"github.com/iconidentify/vodgrabba/internal/service"
)

// DownloadQueue is the part of the download service the handler needs.
type DownloadQueue interface {
	Submit(ctx context.Context, req service.DownloadRequest) (*domain.Job, error)
	GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error)
	ListJobs(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, *repository.QueueStats, error)
}

// DownloadHandler handles download job requests.
type DownloadHandler struct {
	svc    DownloadQueue
	logger *slog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(svc DownloadQueue, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		svc:    svc,
		logger: logger,
	}
}

// SubmitRequest is the JSON request body for a download.
type SubmitRequest struct {
	Input      string   `json:"input"`
	Output     string   `json:"output,omitempty"`
	AuthToken  string   `json:"auth_token,omitempty"`
	InputArgs  []string `json:"input_args,omitempty"`
	OutputArgs []string `json:"output_args,omitempty"`
}

// JobResponse represents a job in API responses. The per-job auth token is never included.
type JobResponse struct {
	JobID       string     `json:"job_id"`
	VideoID     string     `json:"video_id"`
	Input       string     `json:"input,omitempty"`
	OutputPath  string     `json:"output_path"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListResponse contains the job list and queue counters.
type ListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Queue *QueueStats   `json:"queue"`
	Limit int           `json:"limit"`
}

func newJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		JobID:       job.ID.String(),
		VideoID:     job.VideoID.String(),
		Input:       job.Input,
		OutputPath:  job.OutputPath,
		Status:      string(job.Status),
		Error:       job.LastError,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
}

// Submit handles POST /api/v1/downloads
func (h *DownloadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.svc.Submit(r.Context(), service.DownloadRequest{
		Input:      req.Input,
		OutputPath: req.Output,
		AuthToken:  req.AuthToken,
		InputArgs:  req.InputArgs,
		OutputArgs: req.OutputArgs,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidIdentifier) || errors.Is(err, domain.ErrConverterArgNotAllowed) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit download")
		return
	}

	writeJSON(w, http.StatusAccepted, newJobResponse(job))
}

// List handles GET /api/v1/downloads
func (h *DownloadHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	var status *domain.JobStatus

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.JobStatus(s)
		switch st {
		case domain.JobStatusQueued, domain.JobStatusProcessing, domain.JobStatusCompleted, domain.JobStatusFailed:
			status = &st
		default:
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
	}

	jobs, stats, err := h.svc.ListJobs(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list downloads")
		return
	}

	response := ListResponse{
		Jobs:  make([]JobResponse, 0, len(jobs)),
		Queue: newQueueStats(stats),
		Limit: limit,
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, newJobResponse(job))
	}

	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/downloads/{jobID}
func (h *DownloadHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job, err := h.svc.GetJob(r.Context(), domain.JobID(jobID))
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("get failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get download")
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(job))
}
