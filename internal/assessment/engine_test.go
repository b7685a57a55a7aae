package assessment

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ayusman/signcheck/internal/inference"
	"github.com/ayusman/signcheck/internal/logger"
	"github.com/ayusman/signcheck/internal/store"
)

// memLog is an in-memory DetectionLog and ProgressStore.
type memLog struct {
	mu          sync.Mutex
	detections  []store.Detection
	completions map[string]map[int]bool
	appendErr   error
	countErr    error
	progressErr error
}

func newMemLog() *memLog {
	return &memLog{completions: make(map[string]map[int]bool)}
}

func (m *memLog) Append(_ context.Context, d *store.Detection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.detections = append(m.detections, *d)
	return nil
}

func (m *memLog) CountMatching(_ context.Context, q store.DetectionQuery) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, d := range m.detections {
		if d.SubjectID == q.SubjectID && d.LessonID == q.LessonID && d.Label == q.Label &&
			d.Confidence >= q.MinConfidence && !d.DetectedAt.Before(q.Since) &&
			(q.Until.IsZero() || !d.DetectedAt.After(q.Until)) {
			n++
		}
	}
	return n, nil
}

func (m *memLog) AddCompletion(_ context.Context, subjectID string, lessonID int, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progressErr != nil {
		return false, m.progressErr
	}
	if m.completions[subjectID] == nil {
		m.completions[subjectID] = make(map[int]bool)
	}
	if m.completions[subjectID][lessonID] {
		return false, nil
	}
	m.completions[subjectID][lessonID] = true
	return true, nil
}

func (m *memLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.detections)
}

func singleTaskCatalog() *Catalog {
	c, err := NewCatalog(
		[]Lesson{{ID: 1, Title: "Lesson 1"}, {ID: 9, Title: "Empty"}},
		[]Definition{
			{LessonID: 1, Title: "Lesson 1 Assessment", TimeWindow: 60 * time.Second, Tasks: []Task{
				{Prompt: "Sign A", TargetLabel: "A", MinRepetitions: 3, MinConfidence: 0.6},
			}},
			{LessonID: 9, Title: "Empty Assessment", TimeWindow: 60 * time.Second},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

func TestEngine_RecordAndEvaluate(t *testing.T) {
	Convey("Given an engine with a single task A x3 at 0.6 within 60s", t, func() {
		ctx := context.Background()
		mem := newMemLog()
		engine := NewEngine(singleTaskCatalog(), mem, mem, WithLogger(logger.Nop()))
		t0 := time.Unix(1_700_000_000, 0)
		predA := inference.Prediction{Label: "A", Confidence: 0.8}

		Convey("When three confident A detections arrive within the window", func() {
			var v Verdict
			var err error
			for i := 0; i < 3; i++ {
				v, err = engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0.Add(time.Duration(i)*time.Second))
				So(err, ShouldBeNil)
			}

			Convey("Then the assessment passes and progress is recorded", func() {
				So(v.OverallPass, ShouldBeTrue)
				So(v.State, ShouldEqual, AllTasksPassed)
				So(v.TaskResults, ShouldHaveLength, 1)
				So(v.TaskResults[0].MatchedCount, ShouldEqual, 3)
				So(v.TaskResults[0].Passed, ShouldBeTrue)
				So(v.Title, ShouldEqual, "Lesson 1 Assessment")
				So(mem.completions["u1"][1], ShouldBeTrue)
			})

			Convey("And a fourth detection keeps progress idempotent", func() {
				v, err = engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0.Add(3*time.Second))
				So(err, ShouldBeNil)
				So(v.OverallPass, ShouldBeTrue)
				So(v.TaskResults[0].MatchedCount, ShouldEqual, 4)
				So(mem.completions["u1"], ShouldHaveLength, 1)
			})
		})

		Convey("When only two confident A detections arrive", func() {
			var v Verdict
			for i := 0; i < 2; i++ {
				var err error
				v, err = engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0.Add(time.Duration(i)*time.Second))
				So(err, ShouldBeNil)
			}

			Convey("Then the task is partially matched", func() {
				So(v.OverallPass, ShouldBeFalse)
				So(v.State, ShouldEqual, PartiallyMatched)
				So(v.TaskResults[0].MatchedCount, ShouldEqual, 2)
				So(mem.completions["u1"], ShouldBeEmpty)
			})
		})

		Convey("When earlier detections fall outside the window", func() {
			_, err := engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0.Add(-70*time.Second))
			So(err, ShouldBeNil)
			_, err = engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0.Add(-65*time.Second))
			So(err, ShouldBeNil)
			v, err := engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0)

			Convey("Then only in-window detections count", func() {
				So(err, ShouldBeNil)
				So(v.TaskResults[0].MatchedCount, ShouldEqual, 1)
				So(v.OverallPass, ShouldBeFalse)
			})
		})

		Convey("When the detection is exactly at the window start", func() {
			_, err := engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0.Add(-60*time.Second))
			So(err, ShouldBeNil)
			v, err := engine.Evaluate(ctx, "u1", 1, t0)

			Convey("Then it is counted", func() {
				So(err, ShouldBeNil)
				So(v.TaskResults[0].MatchedCount, ShouldEqual, 1)
			})
		})

		Convey("When detections are below the confidence threshold or mislabelled", func() {
			for i := 0; i < 3; i++ {
				_, err := engine.RecordAndEvaluate(ctx, "u1", 1, inference.Prediction{Label: "A", Confidence: 0.59}, t0)
				So(err, ShouldBeNil)
			}
			v, err := engine.RecordAndEvaluate(ctx, "u1", 1, inference.Prediction{Label: "B", Confidence: 0.99}, t0)

			Convey("Then nothing matches", func() {
				So(err, ShouldBeNil)
				So(v.State, ShouldEqual, NoDetectionsYet)
				So(v.TaskResults[0].MatchedCount, ShouldEqual, 0)
				So(mem.count(), ShouldEqual, 4)
			})
		})

		Convey("When another subject signs", func() {
			for i := 0; i < 3; i++ {
				_, err := engine.RecordAndEvaluate(ctx, "u2", 1, predA, t0)
				So(err, ShouldBeNil)
			}
			v, err := engine.Evaluate(ctx, "u1", 1, t0)

			Convey("Then the first subject is unaffected", func() {
				So(err, ShouldBeNil)
				So(v.State, ShouldEqual, NoDetectionsYet)
			})
		})

		Convey("When the lesson is unknown", func() {
			_, err := engine.RecordAndEvaluate(ctx, "u1", 42, predA, t0)

			Convey("Then a configuration error is returned and nothing is appended", func() {
				var cerr *ConfigurationError
				So(errors.As(err, &cerr), ShouldBeTrue)
				So(cerr.LessonID, ShouldEqual, 42)
				So(errors.Is(err, ErrUnknownLesson), ShouldBeTrue)
				So(mem.count(), ShouldEqual, 0)
			})
		})

		Convey("When the assessment has no tasks", func() {
			_, err := engine.RecordAndEvaluate(ctx, "u1", 9, predA, t0)

			Convey("Then ErrNoTasks is returned and nothing is appended", func() {
				So(errors.Is(err, ErrNoTasks), ShouldBeTrue)
				So(mem.count(), ShouldEqual, 0)
			})
		})

		Convey("When the subject is empty", func() {
			_, err := engine.RecordAndEvaluate(ctx, "", 1, predA, t0)

			Convey("Then ErrEmptySubject is returned", func() {
				So(errors.Is(err, ErrEmptySubject), ShouldBeTrue)
			})
		})

		Convey("When the detection log is unavailable", func() {
			mem.appendErr = store.ErrUnavailable
			_, err := engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0)

			Convey("Then the store failure is surfaced", func() {
				So(errors.Is(err, ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(err, store.ErrUnavailable), ShouldBeTrue)
			})
		})

		Convey("When counting fails", func() {
			mem.countErr = errors.New("timeout")
			_, err := engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0)

			Convey("Then the store failure is surfaced after the append", func() {
				So(errors.Is(err, ErrStoreUnavailable), ShouldBeTrue)
				So(mem.count(), ShouldEqual, 1)
			})
		})

		Convey("When the progress update fails on a pass", func() {
			for i := 0; i < 2; i++ {
				_, err := engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0)
				So(err, ShouldBeNil)
			}
			mem.progressErr = errors.New("disk full")
			_, err := engine.RecordAndEvaluate(ctx, "u1", 1, predA, t0)

			Convey("Then no verdict is returned", func() {
				So(errors.Is(err, ErrStoreUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestEngine_Evaluate(t *testing.T) {
	Convey("Given an engine with recorded detections", t, func() {
		ctx := context.Background()
		mem := newMemLog()
		engine := NewEngine(singleTaskCatalog(), mem, mem, WithLogger(logger.Nop()))
		t0 := time.Unix(1_700_000_000, 0)
		for i := 0; i < 3; i++ {
			_, err := engine.RecordAndEvaluate(ctx, "u1", 1, inference.Prediction{Label: "A", Confidence: 0.9}, t0)
			So(err, ShouldBeNil)
		}

		Convey("When evaluating inside the window", func() {
			v, err := engine.Evaluate(ctx, "u1", 1, t0.Add(30*time.Second))

			Convey("Then it reports the pass without appending", func() {
				So(err, ShouldBeNil)
				So(v.OverallPass, ShouldBeTrue)
				So(mem.count(), ShouldEqual, 3)
			})
		})

		Convey("When evaluating at a time before the detections were recorded", func() {
			v, err := engine.Evaluate(ctx, "u1", 1, t0.Add(-30*time.Second))

			Convey("Then the later detections do not count", func() {
				So(err, ShouldBeNil)
				So(v.OverallPass, ShouldBeFalse)
				So(v.TaskResults[0].MatchedCount, ShouldEqual, 0)
			})
		})

		Convey("When evaluating after the window has passed", func() {
			v, err := engine.Evaluate(ctx, "u1", 1, t0.Add(2*time.Minute))

			Convey("Then the detections no longer count", func() {
				So(err, ShouldBeNil)
				So(v.OverallPass, ShouldBeFalse)
				So(v.State, ShouldEqual, NoDetectionsYet)
			})
		})
	})
}

func TestEngine_WithSQLiteStore(t *testing.T) {
	Convey("Given the default catalog over a SQLite store", t, func() {
		ctx := context.Background()
		s, err := store.New(filepath.Join(t.TempDir(), "engine.db"))
		So(err, ShouldBeNil)
		Reset(func() { s.Close() })

		engine := NewEngine(DefaultCatalog(), s.Detections(), s.Progress(), WithLogger(logger.Nop()))
		now := time.Now()

		Convey("When the learner signs A three times and C three times", func() {
			var v Verdict
			for i, label := range []string{"A", "C", "A", "C", "A"} {
				v, err = engine.RecordAndEvaluate(ctx, "learner", 1, inference.Prediction{Label: label, Confidence: 0.9}, now.Add(time.Duration(i)*time.Second))
				So(err, ShouldBeNil)
				So(v.OverallPass, ShouldBeFalse)
			}
			v, err = engine.RecordAndEvaluate(ctx, "learner", 1, inference.Prediction{Label: "C", Confidence: 0.9}, now.Add(6*time.Second))

			Convey("Then lesson 1 is completed", func() {
				So(err, ShouldBeNil)
				So(v.OverallPass, ShouldBeTrue)
				So(v.TaskResults[0].MatchedCount, ShouldEqual, 3)
				So(v.TaskResults[1].MatchedCount, ShouldEqual, 3)

				p, err := s.Progress().Get(ctx, "learner")
				So(err, ShouldBeNil)
				So(p.CompletedLessons, ShouldResemble, []int{1})
				So(p.PassedAssessments, ShouldResemble, []string{"Lesson 1 Assessment"})
			})
		})
	})
}
