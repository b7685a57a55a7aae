// Package inference turns raw landmark payloads into letter predictions.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/signcheck/internal/classifier"
	"github.com/ayusman/signcheck/internal/landmark"
	"github.com/ayusman/signcheck/internal/logger"
	"github.com/ayusman/signcheck/internal/metrics"
)

// UnknownLabel is reported when no label is confident enough.
const UnknownLabel = "unknown"

// probabilityTolerance bounds how far the softmax sum may drift from 1.
const probabilityTolerance = 1e-6

// Prediction is the classifier's best guess for one hand.
type Prediction struct {
	Label      string  `json:"letter"`
	Confidence float64 `json:"confidence"`
}

// Known reports whether the prediction names a real label.
func (p Prediction) Known() bool {
	return p.Label != "" && p.Label != UnknownLabel
}

// Service runs validation, normalization and classification. It is
// immutable after construction and safe for concurrent use.
type Service struct {
	model         *classifier.Model
	minConfidence float64
	log           logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMinConfidence reports UnknownLabel when the top probability is below
// threshold. Zero always reports the arg-max label.
func WithMinConfidence(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 && threshold <= 1 {
			s.minConfidence = threshold
		}
	}
}

// WithLogger sets the logger used for per-request diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Service around a loaded model.
func New(model *classifier.Model, opts ...Option) (*Service, error) {
	if model == nil {
		return nil, errors.New("inference: nil model")
	}
	s := &Service{
		model: model,
		log:   logger.Named("inference"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Predict validates a JSON request body and classifies its landmarks.
func (s *Service) Predict(body []byte) (Prediction, error) {
	lm, err := ParsePoints(body)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			metrics.RecordValidationError(string(verr.Reason))
			s.log.Debug(context.Background(), "rejected payload", logger.String("reason", string(verr.Reason)))
		}
		return Prediction{}, err
	}
	return s.PredictLandmarks(lm)
}

// PredictLandmarks classifies already-validated landmarks.
func (s *Service) PredictLandmarks(lm landmark.Landmarks) (Prediction, error) {
	start := time.Now()
	defer func() {
		metrics.RecordInferenceLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	features := landmark.Normalize(lm)
	scores, err := s.model.Classify(features)
	if err != nil {
		return Prediction{}, s.fail(err)
	}

	probs := classifier.Softmax(scores)
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if math.IsNaN(sum) || math.Abs(sum-1) > probabilityTolerance {
		return Prediction{}, s.fail(fmt.Errorf("probabilities sum to %v", sum))
	}

	idx, confidence := classifier.ArgMax(probs)
	label, ok := s.model.Label(idx)
	if !ok || confidence < s.minConfidence {
		label = UnknownLabel
	}

	metrics.RecordPrediction(label)
	return Prediction{Label: label, Confidence: confidence}, nil
}

// Labels returns the labels the model can emit.
func (s *Service) Labels() []string {
	return s.model.Labels()
}

// ModelVersion returns the loaded parameter set version.
func (s *Service) ModelVersion() string {
	return s.model.Version()
}

func (s *Service) fail(err error) error {
	metrics.RecordInferenceError()
	s.log.Error(context.Background(), "classification failed", logger.Error(err))
	return &InferenceError{Err: err}
}
