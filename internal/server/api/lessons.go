package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/signcheck/internal/assessment"
)

// LessonsHandler handles GET /api/lessons and GET /api/lessons/{id}.
type LessonsHandler struct {
	catalog *assessment.Catalog
}

// NewLessonsHandler creates a LessonsHandler over catalog.
func NewLessonsHandler(c *assessment.Catalog) *LessonsHandler {
	return &LessonsHandler{catalog: c}
}

type assessmentInfo struct {
	Title             string            `json:"title"`
	TimeWindowSeconds float64           `json:"time_window_seconds"`
	Tasks             []assessment.Task `json:"tasks"`
}

type lessonResponse struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Assessment  *assessmentInfo `json:"assessment,omitempty"`
}

type listLessonsResponse struct {
	Lessons []lessonResponse `json:"lessons"`
}

// ServeHTTP implements the http.Handler interface.
func (h *LessonsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/lessons"), "/")
	if path == "" {
		h.list(w)
		return
	}

	id, err := strconv.Atoi(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "Lesson not found")
		return
	}
	lesson, ok := h.catalog.Lesson(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Lesson not found")
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(lesson))
}

func (h *LessonsHandler) list(w http.ResponseWriter) {
	lessons := h.catalog.Lessons()
	response := listLessonsResponse{Lessons: make([]lessonResponse, 0, len(lessons))}
	for _, l := range lessons {
		response.Lessons = append(response.Lessons, h.toResponse(l))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *LessonsHandler) toResponse(l assessment.Lesson) lessonResponse {
	resp := lessonResponse{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Image:       l.Image,
	}
	if def, err := h.catalog.Definition(l.ID); err == nil {
		resp.Assessment = &assessmentInfo{
			Title:             def.Title,
			TimeWindowSeconds: def.TimeWindow.Seconds(),
			Tasks:             def.Tasks,
		}
	}
	return resp
}

// parseLessonPath extracts the lesson ID from /api/lessons/{id}/{suffix}.
func parseLessonPath(path, suffix string) (int, bool) {
	path = strings.TrimPrefix(path, "/api/lessons/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != suffix {
		return 0, false
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	return id, true
}
