package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/signcheck/internal/assessment"
	"github.com/ayusman/signcheck/internal/logger"
	"github.com/ayusman/signcheck/internal/metrics"
	"github.com/ayusman/signcheck/internal/mlclient"
)

// AssessmentHandler handles /api/lessons/{id}/assessment.
//
// POST runs one frame through the predictor, records the detection and
// returns the fresh verdict. GET returns the current verdict without
// recording anything.
type AssessmentHandler struct {
	engine    *assessment.Engine
	predictor mlclient.Predictor
	limiter   *SubjectLimiter
	now       func() time.Time
	log       logger.Logger
}

// AssessmentOption configures an AssessmentHandler.
type AssessmentOption func(*AssessmentHandler)

// WithLimiter rate limits POSTs per subject.
func WithLimiter(l *SubjectLimiter) AssessmentOption {
	return func(h *AssessmentHandler) {
		h.limiter = l
	}
}

// WithClock overrides the evaluation clock.
func WithClock(now func() time.Time) AssessmentOption {
	return func(h *AssessmentHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewAssessmentHandler creates an AssessmentHandler.
func NewAssessmentHandler(engine *assessment.Engine, predictor mlclient.Predictor, opts ...AssessmentOption) *AssessmentHandler {
	h := &AssessmentHandler{
		engine:    engine,
		predictor: predictor,
		now:       time.Now,
		log:       logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements the http.Handler interface.
func (h *AssessmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := parseLessonPath(r.URL.Path, "assessment")
	if !ok {
		writeError(w, http.StatusNotFound, "Lesson not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.evaluate(w, r, lessonID)
	case http.MethodPost:
		h.submit(w, r, lessonID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AssessmentHandler) evaluate(w http.ResponseWriter, r *http.Request, lessonID int) {
	subject := subjectFrom(r)
	if subject == "" {
		writeError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	verdict, err := h.engine.Evaluate(r.Context(), subject, lessonID, h.now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewVerdictResponse(nil, verdict))
}

func (h *AssessmentHandler) submit(w http.ResponseWriter, r *http.Request, lessonID int) {
	subject := subjectFrom(r)
	if subject == "" {
		writeError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	// Reject unknown or empty assessments before spending a prediction.
	if _, err := h.engine.Catalog().Definition(lessonID); err != nil {
		writeDomainError(w, err)
		return
	}

	if !h.limiter.Allow(subject) {
		metrics.RecordRateLimited()
		writeError(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	pred, err := h.predictor.Predict(r.Context(), body)
	if err != nil {
		h.log.Debug(r.Context(), "prediction failed",
			logger.String("subject", subject),
			logger.Int("lesson", lessonID),
			logger.Error(err))
		writeDomainError(w, err)
		return
	}

	verdict, err := h.engine.RecordAndEvaluate(r.Context(), subject, lessonID, pred, h.now())
	if err != nil {
		h.log.Error(r.Context(), "assessment failed",
			logger.String("subject", subject),
			logger.Int("lesson", lessonID),
			logger.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewVerdictResponse(&pred, verdict))
}

// subjectFrom reads the learner ID from the header.
func subjectFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(SubjectHeader))
}
