package store

import (
	"context"
	"time"

	"github.com/ayusman/signcheck/internal/metrics"
)

// UserProgress lists what a subject has completed. Both sets only grow.
type UserProgress struct {
	SubjectID         string
	CompletedLessons  []int
	PassedAssessments []string
}

// ProgressRepository records lesson completions as set insertions.
type ProgressRepository struct {
	s *Store
}

// Progress returns the progress repository for this store.
func (s *Store) Progress() *ProgressRepository {
	return &ProgressRepository{s: s}
}

// AddCompletion adds lessonID and title to the subject's sets. Repeated calls
// are no-ops. It reports whether the lesson was newly added.
func (r *ProgressRepository) AddCompletion(ctx context.Context, subjectID string, lessonID int, title string) (bool, error) {
	defer observe("add_completion", time.Now())
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("add completion", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		r.s.rebind(`INSERT INTO lesson_completions (subject_id, lesson_id, completed_at)
		 VALUES (?, ?, ?) ON CONFLICT DO NOTHING`),
		subjectID, lessonID, now,
	)
	if err != nil {
		return false, unavailable("add completion", err)
	}
	if _, err := tx.ExecContext(ctx,
		r.s.rebind(`INSERT INTO assessment_passes (subject_id, title, passed_at)
		 VALUES (?, ?, ?) ON CONFLICT DO NOTHING`),
		subjectID, title, now,
	); err != nil {
		return false, unavailable("add completion", err)
	}
	if err := tx.Commit(); err != nil {
		return false, unavailable("add completion", err)
	}

	n, err := res.RowsAffected()
	added := err == nil && n > 0
	if added {
		metrics.RecordProgressUpdate()
	}
	return added, nil
}

// Get returns the progress of a subject. A subject with no completions gets
// empty sets.
func (r *ProgressRepository) Get(ctx context.Context, subjectID string) (UserProgress, error) {
	defer observe("get_progress", time.Now())
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	p := UserProgress{
		SubjectID:         subjectID,
		CompletedLessons:  []int{},
		PassedAssessments: []string{},
	}

	rows, err := r.s.db.QueryContext(ctx,
		r.s.rebind(`SELECT lesson_id FROM lesson_completions WHERE subject_id = ? ORDER BY lesson_id`),
		subjectID,
	)
	if err != nil {
		return p, unavailable("get progress", err)
	}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return p, unavailable("get progress", err)
		}
		p.CompletedLessons = append(p.CompletedLessons, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return p, unavailable("get progress", err)
	}

	rows, err = r.s.db.QueryContext(ctx,
		r.s.rebind(`SELECT title FROM assessment_passes WHERE subject_id = ? ORDER BY title`),
		subjectID,
	)
	if err != nil {
		return p, unavailable("get progress", err)
	}
	defer rows.Close()
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return p, unavailable("get progress", err)
		}
		p.PassedAssessments = append(p.PassedAssessments, title)
	}
	if err := rows.Err(); err != nil {
		return p, unavailable("get progress", err)
	}
	return p, nil
}
