// Package api provides HTTP API handlers for the sign assessment service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/signcheck/internal/assessment"
	"github.com/ayusman/signcheck/internal/inference"
	"github.com/ayusman/signcheck/internal/mlclient"
	"github.com/ayusman/signcheck/internal/store"
)

// SubjectHeader carries the authenticated learner ID.
const SubjectHeader = "X-Subject-ID"

// MaxBodyBytes caps request bodies and stream frames; a landmark payload is a
// few KB.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// readBody reads at most MaxBodyBytes of the request body. An oversized body
// gets a 413 and ok is false. Other read failures yield a nil body, which the
// predictor rejects as malformed.
func readBody(w http.ResponseWriter, r *http.Request) (body []byte, ok bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		return nil, true
	}
	return body, true
}

// ErrorFor maps a domain error to an HTTP status and body.
func ErrorFor(err error) (int, ErrorResponse) {
	var verr *inference.ValidationError
	var ierr *inference.InferenceError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Reason: string(verr.Reason)}
	case errors.As(err, &ierr):
		return http.StatusInternalServerError, ErrorResponse{Error: "Failed to get prediction"}
	case errors.Is(err, mlclient.ErrUnavailable):
		return http.StatusBadGateway, ErrorResponse{Error: "Failed to get prediction"}
	case errors.Is(err, assessment.ErrEmptySubject):
		return http.StatusUnauthorized, ErrorResponse{Error: "Not logged in"}
	case errors.Is(err, assessment.ErrUnknownLesson):
		return http.StatusNotFound, ErrorResponse{Error: "Lesson not found"}
	case errors.Is(err, assessment.ErrNoTasks):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "Assessment has no tasks"}
	case errors.Is(err, assessment.ErrStoreUnavailable),
		errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "Storage unavailable, retry later"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal error"}
	}
}

// writeDomainError writes the response ErrorFor selects.
func writeDomainError(w http.ResponseWriter, err error) {
	status, body := ErrorFor(err)
	writeJSON(w, status, body)
}

// TaskResultResponse is one task outcome on the wire.
type TaskResultResponse struct {
	Prompt         string  `json:"prompt"`
	TargetSign     string  `json:"target_sign"`
	MinRepetitions int     `json:"min_repetitions"`
	MinConfidence  float64 `json:"min_confidence"`
	MatchedCount   int     `json:"matched_count"`
	Passed         bool    `json:"passed"`
}

// VerdictResponse is the assessment result returned by the POST, GET and
// stream endpoints. Current fields are set only when a prediction was made.
type VerdictResponse struct {
	CurrentLetter     string               `json:"current_letter,omitempty"`
	CurrentConfidence *float64             `json:"current_confidence,omitempty"`
	LessonID          int                  `json:"lesson_id"`
	Title             string               `json:"title"`
	TaskResults       []TaskResultResponse `json:"task_results"`
	OverallPass       bool                 `json:"overall_pass"`
	State             string               `json:"state"`
}

// NewVerdictResponse converts a verdict and the prediction that produced it.
func NewVerdictResponse(pred *inference.Prediction, v assessment.Verdict) VerdictResponse {
	resp := VerdictResponse{
		LessonID:    v.LessonID,
		Title:       v.Title,
		TaskResults: make([]TaskResultResponse, 0, len(v.TaskResults)),
		OverallPass: v.OverallPass,
		State:       string(v.State),
	}
	if pred != nil {
		conf := pred.Confidence
		resp.CurrentLetter = pred.Label
		resp.CurrentConfidence = &conf
	}
	for _, r := range v.TaskResults {
		resp.TaskResults = append(resp.TaskResults, TaskResultResponse{
			Prompt:         r.Task.Prompt,
			TargetSign:     r.Task.TargetLabel,
			MinRepetitions: r.Task.MinRepetitions,
			MinConfidence:  r.Task.MinConfidence,
			MatchedCount:   r.MatchedCount,
			Passed:         r.Passed,
		})
	}
	return resp
}
