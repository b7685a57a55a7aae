package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openPostgres returns a store on the database named by SIGNCHECK_TEST_PG_DSN
// or skips the test.
func openPostgres(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SIGNCHECK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SIGNCHECK_TEST_PG_DSN not set")
	}
	s, err := Open(Config{Driver: DriverPostgres, DSN: dsn, QueryTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("failed to open postgres store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDetections_AppendAndCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Detections()
	now := time.Now()

	appendAt := func(label string, conf float64, at time.Time) {
		t.Helper()
		if err := repo.Append(ctx, &Detection{SubjectID: "u1", LessonID: 1, Label: label, Confidence: conf, DetectedAt: at}); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	appendAt("A", 0.9, now.Add(-10*time.Second))
	appendAt("A", 0.8, now.Add(-5*time.Second))
	appendAt("A", 0.5, now.Add(-4*time.Second))
	appendAt("C", 0.95, now.Add(-3*time.Second))
	appendAt("A", 0.99, now.Add(-2*time.Minute))

	tests := []struct {
		name string
		q    DetectionQuery
		want int
	}{
		{"label and confidence in window", DetectionQuery{SubjectID: "u1", LessonID: 1, Label: "A", MinConfidence: 0.6, Since: now.Add(-time.Minute)}, 2},
		{"confidence threshold is inclusive", DetectionQuery{SubjectID: "u1", LessonID: 1, Label: "A", MinConfidence: 0.5, Since: now.Add(-time.Minute)}, 3},
		{"window start is inclusive", DetectionQuery{SubjectID: "u1", LessonID: 1, Label: "A", MinConfidence: 0.6, Since: now.Add(-5 * time.Second)}, 1},
		{"older detections included with wider window", DetectionQuery{SubjectID: "u1", LessonID: 1, Label: "A", MinConfidence: 0.6, Since: now.Add(-time.Hour)}, 3},
		{"window end is inclusive", DetectionQuery{SubjectID: "u1", LessonID: 1, Label: "A", MinConfidence: 0.6, Since: now.Add(-time.Minute), Until: now.Add(-5 * time.Second)}, 2},
		{"detections after the window end excluded", DetectionQuery{SubjectID: "u1", LessonID: 1, Label: "A", MinConfidence: 0.6, Since: now.Add(-time.Hour), Until: now.Add(-30 * time.Second)}, 1},
		{"other lesson", DetectionQuery{SubjectID: "u1", LessonID: 2, Label: "A", Since: now.Add(-time.Hour)}, 0},
		{"other subject", DetectionQuery{SubjectID: "u2", LessonID: 1, Label: "A", Since: now.Add(-time.Hour)}, 0},
		{"other label", DetectionQuery{SubjectID: "u1", LessonID: 1, Label: "C", MinConfidence: 0.6, Since: now.Add(-time.Minute)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.CountMatching(ctx, tt.q)
			if err != nil {
				t.Fatalf("failed to count: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDetections_AppendAssignsID(t *testing.T) {
	s := newTestStore(t)

	d := &Detection{SubjectID: "u1", LessonID: 3, Label: "O", Confidence: 0.7}
	if err := s.Detections().Append(context.Background(), d); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if d.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if d.DetectedAt.IsZero() {
		t.Error("expected timestamp to be assigned")
	}
}

func TestDetections_AppendRejectsEmptySubject(t *testing.T) {
	s := newTestStore(t)
	if err := s.Detections().Append(context.Background(), &Detection{LessonID: 1, Label: "A"}); err == nil {
		t.Error("expected error for empty subject")
	}
}

func TestDetections_ListRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Detections()
	base := time.Now()

	for i, label := range []string{"A", "B", "C", "D"} {
		d := &Detection{SubjectID: "u1", LessonID: 1, Label: label, Confidence: 0.9, DetectedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Append(ctx, d); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	got, err := repo.ListRecent(ctx, "u1", 1, 3)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 detections, got %d", len(got))
	}
	if got[0].Label != "D" || got[2].Label != "B" {
		t.Errorf("expected newest first, got %s..%s", got[0].Label, got[2].Label)
	}
	if !got[0].DetectedAt.Equal(base.Add(3 * time.Second)) {
		t.Errorf("timestamp not preserved: %v", got[0].DetectedAt)
	}
}

func TestDetections_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Detections()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subject := "u1"
			if i%2 == 1 {
				subject = "u2"
			}
			errs <- repo.Append(ctx, &Detection{SubjectID: subject, LessonID: 1, Label: "A", Confidence: 0.9})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	for _, subject := range []string{"u1", "u2"} {
		n, err := repo.CountMatching(ctx, DetectionQuery{SubjectID: subject, LessonID: 1, Label: "A", Since: time.Now().Add(-time.Minute)})
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if n != 20 {
			t.Errorf("subject %s: expected 20 detections, got %d", subject, n)
		}
	}
}

func TestDetections_Unavailable(t *testing.T) {
	s := newTestStore(t)
	s.Close()

	err := s.Detections().Append(context.Background(), &Detection{SubjectID: "u1", LessonID: 1, Label: "A"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	_, err = s.Detections().CountMatching(context.Background(), DetectionQuery{SubjectID: "u1"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestDetections_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Detections().Append(ctx, &Detection{SubjectID: "u1", LessonID: 1, Label: "A"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestDetections_Postgres(t *testing.T) {
	ctx := context.Background()
	s := openPostgres(t)
	subject := "pg-" + time.Now().Format("150405.000000000")

	if err := s.Detections().Append(ctx, &Detection{SubjectID: subject, LessonID: 1, Label: "A", Confidence: 0.9}); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	n, err := s.Detections().CountMatching(ctx, DetectionQuery{SubjectID: subject, LessonID: 1, Label: "A", MinConfidence: 0.6, Since: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
}
