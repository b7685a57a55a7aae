package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused subject limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type subjectLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SubjectLimiter applies a token bucket per subject. A nil *SubjectLimiter
// allows everything.
type SubjectLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	subjects map[string]*subjectLimit
	lastGC   time.Time
}

// NewSubjectLimiter returns nil when perSecond is not positive.
func NewSubjectLimiter(perSecond float64, burst int) *SubjectLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &SubjectLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		subjects: make(map[string]*subjectLimit),
		lastGC:   time.Now(),
	}
}

// Allow reports whether subject may make another request now.
func (l *SubjectLimiter) Allow(subject string) bool {
	if l == nil {
		return true
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > idleLimiterTTL {
		for s, e := range l.subjects {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(l.subjects, s)
			}
		}
		l.lastGC = now
	}

	e, ok := l.subjects[subject]
	if !ok {
		e = &subjectLimit{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.subjects[subject] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
