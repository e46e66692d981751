package kart

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/kartracer/kartsim/internal/kart"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
