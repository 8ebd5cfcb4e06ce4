package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/okian/posgrade/internal/domain/model"
)

// GradeDependencies defines the synchronous grading operation.
type GradeDependencies interface {
	Grade(ctx context.Context, workDir, transcript string) (model.Result, error)
}

// GradeHandler handles synchronous grading requests.
type GradeHandler struct {
	deps GradeDependencies
}

// NewGradeHandler creates a new grade handler.
func NewGradeHandler(deps GradeDependencies) *GradeHandler {
	return &GradeHandler{deps: deps}
}

type gradeRequest struct {
	WorkDir    string `json:"workdir"`
	Transcript string `json:"transcript"`
}

// HandleGrade handles POST /grade. An empty body grades the work root.
// Grading failures are reported in the result body with status 200.
func (h *GradeHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	const op = "api.grade"
	var req gradeRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Grade(r.Context(), req.WorkDir, req.Transcript)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
