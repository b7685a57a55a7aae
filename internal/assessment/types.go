// Package assessment decides whether a learner has signed each target letter
// often enough, with enough confidence, inside a sliding time window.
package assessment

import "time"

// Task asks for MinRepetitions detections of TargetLabel at or above
// MinConfidence.
type Task struct {
	Prompt         string  `json:"prompt" koanf:"prompt"`
	TargetLabel    string  `json:"target_sign" koanf:"target_sign"`
	MinRepetitions int     `json:"min_repetitions" koanf:"min_repetitions"`
	MinConfidence  float64 `json:"min_confidence" koanf:"min_confidence"`
}

// Definition is the assessment attached to a lesson.
type Definition struct {
	LessonID   int
	Title      string
	TimeWindow time.Duration
	Tasks      []Task
}

// Lesson is a catalog entry shown to learners.
type Lesson struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// TaskResult is the outcome of one task for one evaluation.
type TaskResult struct {
	Task         Task
	MatchedCount int
	Passed       bool
}

// State summarizes a verdict. There is no failed state: a learner can keep
// signing until the window contains enough detections.
type State string

const (
	NoDetectionsYet  State = "no_detections_yet"
	PartiallyMatched State = "partially_matched"
	AllTasksPassed   State = "all_tasks_passed"
)

// Verdict is the result of evaluating every task of a lesson for a subject.
type Verdict struct {
	SubjectID   string
	LessonID    int
	Title       string
	TaskResults []TaskResult
	OverallPass bool
	State       State
	EvaluatedAt time.Time
}

func newVerdict(subjectID string, def Definition, results []TaskResult, now time.Time) Verdict {
	pass := len(results) > 0
	matched := 0
	for _, r := range results {
		pass = pass && r.Passed
		matched += r.MatchedCount
	}

	state := PartiallyMatched
	switch {
	case pass:
		state = AllTasksPassed
	case matched == 0:
		state = NoDetectionsYet
	}

	return Verdict{
		SubjectID:   subjectID,
		LessonID:    def.LessonID,
		Title:       def.Title,
		TaskResults: results,
		OverallPass: pass,
		State:       state,
		EvaluatedAt: now,
	}
}
