package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/signcheck/internal/app"
	"github.com/ayusman/signcheck/internal/config"
	"github.com/ayusman/signcheck/internal/inference"
	"github.com/ayusman/signcheck/internal/server/api"
	"github.com/ayusman/signcheck/internal/fixtures"
)

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	cfg := config.New()
	cfg.DBDSN = filepath.Join(tmpDir, "data.db")
	cfg.HiddenDim = 32
	cfg.RateLimitPerSec = 0

	application, err := app.New(cfg)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	ts := httptest.NewServer(application.Server())
	defer ts.Close()
	client := ts.Client()

	post := func(t *testing.T, path, subject string, body []byte) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(body))
		if subject != "" {
			req.Header.Set(api.SubjectHeader, subject)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("POST %s error = %v", path, err)
		}
		return resp
	}

	valid, err := fixtures.LoadSet("valid")
	if err != nil {
		t.Fatalf("LoadSet(valid) error = %v", err)
	}

	var letter string
	t.Run("ValidPayloadsAgree", func(t *testing.T) {
		for name, body := range valid {
			resp := post(t, "/predict", "", body)
			var pred inference.Prediction
			json.NewDecoder(resp.Body).Decode(&pred)
			resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("%s: status = %d, want %d", name, resp.StatusCode, http.StatusOK)
			}
			if letter == "" {
				letter = pred.Label
			}
			if pred.Label != letter {
				t.Errorf("%s: letter = %s, want %s", name, pred.Label, letter)
			}
		}
	})

	t.Run("InvalidPayloadsRejected", func(t *testing.T) {
		wantReasons := map[string]inference.Reason{
			"malformed":      inference.ReasonMalformedRequest,
			"missing_points": inference.ReasonMissingField,
			"wrong_length":   inference.ReasonWrongLength,
			"wrong_arity":    inference.ReasonWrongArity,
			"conversion":     inference.ReasonConversion,
		}
		invalid, err := fixtures.LoadSet("invalid")
		if err != nil {
			t.Fatalf("LoadSet(invalid) error = %v", err)
		}
		for name, want := range wantReasons {
			resp := post(t, "/predict", "", invalid[name])
			var errResp api.ErrorResponse
			json.NewDecoder(resp.Body).Decode(&errResp)
			resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s: status = %d, want %d", name, resp.StatusCode, http.StatusBadRequest)
			}
			if errResp.Reason != string(want) {
				t.Errorf("%s: reason = %s, want %s", name, errResp.Reason, want)
			}
		}
	})

	t.Run("LessonsListed", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/lessons")
		if err != nil {
			t.Fatalf("GET /api/lessons error = %v", err)
		}
		defer resp.Body.Close()

		var listed struct {
			Lessons []struct {
				ID int `json:"id"`
			} `json:"lessons"`
		}
		json.NewDecoder(resp.Body).Decode(&listed)
		if len(listed.Lessons) != 5 {
			t.Errorf("len(lessons) = %d, want 5", len(listed.Lessons))
		}
	})

	t.Run("AssessmentRecordsDetections", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			resp := post(t, "/api/lessons/5/assessment", "learner-1", valid["thumbs_up"])
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			var verdict api.VerdictResponse
			json.NewDecoder(resp.Body).Decode(&verdict)
			resp.Body.Close()

			if verdict.CurrentLetter != letter {
				t.Errorf("current_letter = %s, want %s", verdict.CurrentLetter, letter)
			}
			if len(verdict.TaskResults) != 3 {
				t.Fatalf("len(task_results) = %d, want 3", len(verdict.TaskResults))
			}
			// The final assessment needs B, R and V, so one letter alone never passes.
			if verdict.OverallPass {
				t.Error("overall_pass = true with a single repeated letter")
			}
		}

		recent, err := application.Store().Detections().ListRecent(t.Context(), "learner-1", 5, 10)
		if err != nil {
			t.Fatalf("ListRecent() error = %v", err)
		}
		if len(recent) != 4 {
			t.Errorf("len(detections) = %d, want 4", len(recent))
		}
	})

	t.Run("ProgressEmpty", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/progress", nil)
		req.Header.Set(api.SubjectHeader, "learner-1")
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET /api/progress error = %v", err)
		}
		defer resp.Body.Close()

		var progress struct {
			CompletedLessons []any `json:"completed_lessons"`
		}
		json.NewDecoder(resp.Body).Decode(&progress)
		if len(progress.CompletedLessons) != 0 {
			t.Errorf("completed_lessons = %v, want none", progress.CompletedLessons)
		}
	})
}
