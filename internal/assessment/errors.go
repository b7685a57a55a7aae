package assessment

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLesson is returned for a lesson ID with no assessment.
	ErrUnknownLesson = errors.New("unknown lesson")
	// ErrNoTasks is returned when an assessment defines no tasks.
	ErrNoTasks = errors.New("assessment has no tasks")
	// ErrStoreUnavailable wraps detection log and progress failures.
	ErrStoreUnavailable = errors.New("assessment store unavailable")
	// ErrEmptySubject is returned when no subject is given.
	ErrEmptySubject = errors.New("empty subject")
)

// ConfigurationError reports a catalog problem for a specific lesson.
type ConfigurationError struct {
	LessonID int
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("lesson %d: %v", e.LessonID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStoreUnavailable, err))
}
