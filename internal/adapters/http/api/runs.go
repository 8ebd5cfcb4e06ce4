package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/posgrade/internal/domain/model"
)

// RunDependencies defines asynchronous run operations.
type RunDependencies interface {
	Submit(ctx context.Context, req model.RunRequest) (model.Run, error)
	Run(ctx context.Context, runID string) (model.Run, error)
}

// RunsHandler handles run submission and lookup.
type RunsHandler struct {
	deps RunDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleSubmit handles POST /runs.
func (h *RunsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_run"
	var req model.RunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Participant) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingParticipant))
		return
	}
	run, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.Header().Set("Location", "/runs/"+run.RunID)
	writeJSON(w, http.StatusAccepted, run)
}

// HandleGetRun handles GET /runs/{id}.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	run, err := h.deps.Run(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
