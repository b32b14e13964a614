package activities

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/ticketd/internal/activities"

var (
	activityDuration metric.Float64Histogram
	activityErrors   metric.Int64Counter
	activityFallback metric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	activityDuration, err = meter.Float64Histogram(
		"ticketd.activities.duration",
		metric.WithDescription("Duration of activity executions, including idempotency lookups"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity duration: %v", err))
	}

	activityErrors, err = meter.Int64Counter(
		"ticketd.activities.errors",
		metric.WithDescription("Number of activity calls that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity error counter: %v", err))
	}

	activityFallback, err = meter.Int64Counter(
		"ticketd.activities.fallbacks",
		metric.WithDescription("Number of advisory activities that substituted a default after a provider failure"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity fallback counter: %v", err))
	}
}

func init() {
	initMetrics()
}
