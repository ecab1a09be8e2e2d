package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
)

// SnapshotLister reads stored snapshot summaries. *snapshot.BigQuerySink
// satisfies it.
type SnapshotLister interface {
	ListRecent(ctx context.Context, n int) ([]*snapshot.Row, error)
}

// SnapshotsHandler enqueues snapshot jobs and lists stored snapshots.
type SnapshotsHandler struct {
	publisher jobs.Publisher
	lister    SnapshotLister
	log       zerolog.Logger
}

// NewSnapshotsHandler creates a new snapshots handler. lister may be nil.
func NewSnapshotsHandler(publisher jobs.Publisher, lister SnapshotLister, log zerolog.Logger) *SnapshotsHandler {
	return &SnapshotsHandler{
		publisher: publisher,
		lister:    lister,
		log:       log,
	}
}

// Enqueue handles POST /api/snapshots
func (h *SnapshotsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DatabaseID string   `json:"databaseId"`
		Exclude    []string `json:"exclude"`
		Start      string   `json:"start"`
		End        string   `json:"end"`
	}

	// An empty body selects the default database without filters.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	f, err := aggregate.ParseFilter(req.Exclude, req.Start, req.End)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.SnapshotJob{
		DatabaseID: req.DatabaseID,
		Start:      f.Start,
		End:        f.End,
	}
	for tag := range f.ExcludedTags {
		job.ExcludedTags = append(job.ExcludedTags, tag)
	}
	sort.Strings(job.ExcludedTags)

	if err := h.publisher.PublishSnapshot(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue snapshot job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue snapshot job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("database_id", req.DatabaseID).Msg("Snapshot job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// List handles GET /api/snapshots
func (h *SnapshotsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		middleware.WriteError(w, http.StatusNotFound, "Snapshot history is not configured")
		return
	}

	rows, err := h.lister.ListRecent(r.Context(), intParam(r, "limit", 10))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	views := make([]snapshot.RowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.View())
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": views,
		"count":     len(views),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		DatabaseID: query.Get("database_id"),
		Status:     jobs.JobStatus(query.Get("status")),
		Limit:      intParam(r, "limit", 0),
		Offset:     intParam(r, "offset", 0),
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
