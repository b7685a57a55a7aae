package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/signcheck/internal/inference"
	"github.com/ayusman/signcheck/internal/logger"
	"github.com/ayusman/signcheck/internal/metrics"
	"github.com/ayusman/signcheck/internal/store"
)

// DetectionLog is the append-only log the engine counts from.
type DetectionLog interface {
	Append(ctx context.Context, d *store.Detection) error
	CountMatching(ctx context.Context, q store.DetectionQuery) (int, error)
}

// ProgressStore records passed assessments as set insertions.
type ProgressStore interface {
	AddCompletion(ctx context.Context, subjectID string, lessonID int, title string) (bool, error)
}

// Engine records detections and evaluates assessments against the log.
// It keeps no per-subject state; every verdict is recomputed from stored
// detections.
type Engine struct {
	catalog    *Catalog
	detections DetectionLog
	progress   ProgressStore
	log        logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an Engine over a catalog and its stores.
func NewEngine(catalog *Catalog, detections DetectionLog, progress ProgressStore, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:    catalog,
		detections: detections,
		progress:   progress,
		log:        logger.Named("assessment"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine evaluates against.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// RecordAndEvaluate appends pred to the subject's detection log for the
// lesson, then evaluates every task over the window ending at now. On an
// overall pass the lesson is added to the subject's progress.
func (e *Engine) RecordAndEvaluate(ctx context.Context, subjectID string, lessonID int, pred inference.Prediction, now time.Time) (Verdict, error) {
	if subjectID == "" {
		return Verdict{}, ErrEmptySubject
	}
	def, err := e.catalog.Definition(lessonID)
	if err != nil {
		return Verdict{}, err
	}

	d := &store.Detection{
		SubjectID:  subjectID,
		LessonID:   lessonID,
		Label:      pred.Label,
		Confidence: pred.Confidence,
		DetectedAt: now,
	}
	if err := e.detections.Append(ctx, d); err != nil {
		return Verdict{}, storeFailure("record detection", err)
	}

	v, err := e.evaluate(ctx, subjectID, def, now)
	if err != nil {
		return Verdict{}, err
	}

	if v.OverallPass {
		added, err := e.progress.AddCompletion(ctx, subjectID, lessonID, def.Title)
		if err != nil {
			return Verdict{}, storeFailure("update progress", err)
		}
		if added {
			e.log.Info(ctx, "lesson completed",
				logger.String("subject", subjectID),
				logger.Int("lesson", lessonID),
				logger.String("assessment", def.Title),
			)
		}
	}

	metrics.RecordVerdict(string(v.State))
	return v, nil
}

// Evaluate computes the verdict at now without recording anything.
func (e *Engine) Evaluate(ctx context.Context, subjectID string, lessonID int, now time.Time) (Verdict, error) {
	if subjectID == "" {
		return Verdict{}, ErrEmptySubject
	}
	def, err := e.catalog.Definition(lessonID)
	if err != nil {
		return Verdict{}, err
	}
	return e.evaluate(ctx, subjectID, def, now)
}

func (e *Engine) evaluate(ctx context.Context, subjectID string, def Definition, now time.Time) (Verdict, error) {
	since := now.Add(-def.TimeWindow)

	results := make([]TaskResult, len(def.Tasks))
	for i, task := range def.Tasks {
		n, err := e.detections.CountMatching(ctx, store.DetectionQuery{
			SubjectID:     subjectID,
			LessonID:      def.LessonID,
			Label:         task.TargetLabel,
			MinConfidence: task.MinConfidence,
			Since:         since,
			Until:         now,
		})
		if err != nil {
			return Verdict{}, storeFailure(fmt.Sprintf("count task %d", i), err)
		}
		results[i] = TaskResult{
			Task:         task,
			MatchedCount: n,
			Passed:       n >= task.MinRepetitions,
		}
	}

	v := newVerdict(subjectID, def, results, now)
	e.log.Debug(ctx, "evaluated assessment",
		logger.String("subject", subjectID),
		logger.Int("lesson", def.LessonID),
		logger.String("state", string(v.State)),
	)
	return v, nil
}
