package api

import (
	"context"
	"net/http"

	"github.com/ayusman/signcheck/internal/assessment"
	"github.com/ayusman/signcheck/internal/store"
)

// ProgressReader reads a learner's completion record.
type ProgressReader interface {
	Get(ctx context.Context, subjectID string) (store.UserProgress, error)
}

// ProgressHandler handles GET /api/progress.
type ProgressHandler struct {
	progress ProgressReader
	catalog  *assessment.Catalog
}

// NewProgressHandler creates a ProgressHandler.
func NewProgressHandler(progress ProgressReader, catalog *assessment.Catalog) *ProgressHandler {
	return &ProgressHandler{progress: progress, catalog: catalog}
}

type completedLesson struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type progressResponse struct {
	SubjectID        string            `json:"subject_id"`
	CompletedLessons []completedLesson `json:"completed_lessons"`
	AssessmentsTaken []string          `json:"assessments_taken"`
}

// ServeHTTP implements the http.Handler interface.
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	subject := subjectFrom(r)
	if subject == "" {
		writeError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	p, err := h.progress.Get(r.Context(), subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := progressResponse{
		SubjectID:        subject,
		CompletedLessons: make([]completedLesson, 0, len(p.CompletedLessons)),
		AssessmentsTaken: p.PassedAssessments,
	}
	if resp.AssessmentsTaken == nil {
		resp.AssessmentsTaken = []string{}
	}
	for _, id := range p.CompletedLessons {
		resp.CompletedLessons = append(resp.CompletedLessons, completedLesson{
			ID:    id,
			Title: h.catalog.LessonTitle(id),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
