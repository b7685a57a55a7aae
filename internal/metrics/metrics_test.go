package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry and options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered on that registry", func() {
				So(manager, ShouldNotBeNil)
				manager.predictions.WithLabelValues("A").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(families[0].GetName(), ShouldStartWith, "test_unit_")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording prediction metrics", func() {
			before := testutil.ToFloat64(current().predictions.WithLabelValues("B"))
			RecordPrediction("B")
			RecordPrediction("B")

			Convey("Then the labelled counter increases", func() {
				So(testutil.ToFloat64(current().predictions.WithLabelValues("B")), ShouldEqual, before+2)
			})
		})

		Convey("When recording assessment metrics", func() {
			before := testutil.ToFloat64(current().verdicts.WithLabelValues("all_tasks_passed"))
			RecordVerdict("all_tasks_passed")

			Convey("Then the verdict counter increases", func() {
				So(testutil.ToFloat64(current().verdicts.WithLabelValues("all_tasks_passed")), ShouldEqual, before+1)
			})
		})

		Convey("When recording the remaining metrics", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordValidationError("wrong_length")
					RecordInferenceError()
					RecordInferenceLatency(1.5)
					RecordDetectionAppended()
					RecordProgressUpdate()
					RecordStoreError("append")
					RecordStoreLatency("count", 0.7)
					RecordHTTPRequest("/predict", "POST", "200")
					RecordHTTPRequestDuration("/predict", "POST", "200", 3)
					RecordRateLimited()
					StreamOpened()
					StreamClosed()
				}, ShouldNotPanic)
			})
		})

		Convey("When gathering the global registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then it exposes the service metrics", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager reconfigured from settings", t, func() {
		Configure(
			WithNamespace("custom"),
			WithSubsystem("api"),
			WithHistogramBuckets([]float64{1, 5}),
		)
		Reset(func() { Configure() })

		RecordPrediction("A")
		RecordInferenceLatency(3)

		Convey("Then the registry exposes the renamed metrics with the new buckets", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			byName := make(map[string]int)
			for i, f := range families {
				byName[f.GetName()] = i
			}
			So(byName, ShouldContainKey, "custom_api_predictions_total")
			So(byName, ShouldContainKey, "custom_api_inference_latency_milliseconds")

			hist := families[byName["custom_api_inference_latency_milliseconds"]].GetMetric()[0].GetHistogram()
			So(hist.GetBucket(), ShouldHaveLength, 2)
			So(hist.GetSampleCount(), ShouldEqual, uint64(1))
		})

		Convey("Then the default registry is replaced", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			for _, f := range families {
				So(f.GetName(), ShouldNotStartWith, "signcheck_")
			}
		})
	})
}
