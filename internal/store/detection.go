package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/signcheck/internal/metrics"
)

// Detection is one prediction recorded during an assessment. Rows are never
// updated or deleted.
type Detection struct {
	ID         string
	SubjectID  string
	LessonID   int
	Label      string
	Confidence float64
	DetectedAt time.Time
}

// DetectionQuery selects detections for counting.
type DetectionQuery struct {
	SubjectID     string
	LessonID      int
	Label         string
	MinConfidence float64
	// Since and Until are inclusive. A zero Until leaves the window open.
	Since time.Time
	Until time.Time
}

// DetectionRepository is the append-only detection log.
type DetectionRepository struct {
	s *Store
}

// Detections returns the detection repository for this store.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{s: s}
}

// Append writes d to the log, assigning an ID and timestamp when unset.
func (r *DetectionRepository) Append(ctx context.Context, d *Detection) error {
	if d.SubjectID == "" {
		return errors.New("append detection: empty subject")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now()
	}

	defer observe("append", time.Now())
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	_, err := r.s.db.ExecContext(ctx,
		r.s.rebind(`INSERT INTO detections (id, subject_id, lesson_id, label, confidence, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		d.ID, d.SubjectID, d.LessonID, d.Label, d.Confidence, d.DetectedAt.UnixNano(),
	)
	if err != nil {
		return unavailable("append detection", err)
	}

	metrics.RecordDetectionAppended()
	return nil
}

// CountMatching returns how many detections satisfy q.
func (r *DetectionRepository) CountMatching(ctx context.Context, q DetectionQuery) (int, error) {
	defer observe("count", time.Now())
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	query := `SELECT COUNT(*) FROM detections
		 WHERE subject_id = ? AND lesson_id = ? AND label = ?
		   AND confidence >= ? AND detected_at >= ?`
	args := []any{q.SubjectID, q.LessonID, q.Label, q.MinConfidence, q.Since.UnixNano()}
	if !q.Until.IsZero() {
		query += ` AND detected_at <= ?`
		args = append(args, q.Until.UnixNano())
	}

	var n int
	err := r.s.db.QueryRowContext(ctx, r.s.rebind(query), args...).Scan(&n)
	if err != nil {
		return 0, unavailable("count detections", err)
	}
	return n, nil
}

// ListRecent returns up to limit detections for a subject and lesson, newest
// first.
func (r *DetectionRepository) ListRecent(ctx context.Context, subjectID string, lessonID, limit int) ([]Detection, error) {
	if limit <= 0 {
		limit = 50
	}

	defer observe("list", time.Now())
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	rows, err := r.s.db.QueryContext(ctx,
		r.s.rebind(`SELECT id, subject_id, lesson_id, label, confidence, detected_at
		 FROM detections WHERE subject_id = ? AND lesson_id = ?
		 ORDER BY detected_at DESC, id LIMIT ?`),
		subjectID, lessonID, limit,
	)
	if err != nil {
		return nil, unavailable("list detections", err)
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		var d Detection
		var ts int64
		if err := rows.Scan(&d.ID, &d.SubjectID, &d.LessonID, &d.Label, &d.Confidence, &ts); err != nil {
			return nil, unavailable("list detections", err)
		}
		d.DetectedAt = time.Unix(0, ts)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list detections", err)
	}
	return out, nil
}
