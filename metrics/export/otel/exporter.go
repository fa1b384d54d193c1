package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	hsAuth "github.com/MrEthical07/hsAuth"
	"github.com/MrEthical07/hsAuth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() hsAuth.MetricsSnapshot
	AuditDropped() uint64
}

// observeFunc reports one instrument's value from a collected snapshot.
type observeFunc func(metric.Observer, hsAuth.MetricsSnapshot)

// OTelExporter publishes engine metrics as observable instruments. Values
// are read from the engine once per collection cycle.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
}

func NewOTelExporter(meter metric.Meter, engine *hsAuth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	var (
		observables []metric.Observable
		observers   []observeFunc
	)

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		observables = append(observables, ins)
		observers = append(observers, func(o metric.Observer, s hsAuth.MetricsSnapshot) {
			o.ObserveInt64(ins, int64(s.Counters[id]))
		})
	}

	for _, def := range internaldefs.HistogramDefs {
		obs, fns, err := histogramInstruments(meter, def)
		if err != nil {
			return nil, err
		}
		observables = append(observables, obs...)
		observers = append(observers, fns...)
	}

	dropped, err := meter.Int64ObservableCounter(
		"hsauth_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("audit dropped counter: %w", err)
	}
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := source.MetricsSnapshot()
		for _, fn := range observers {
			fn(o, snap)
		}
		o.ObserveInt64(dropped, int64(source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	return &OTelExporter{source: source, registration: registration}, nil
}

// histogramInstruments exposes a latency histogram as one cumulative gauge
// per bucket plus _count and _sum gauges.
func histogramInstruments(meter metric.Meter, def internaldefs.HistogramDef) ([]metric.Observable, []observeFunc, error) {
	id := def.ID
	var buckets [internaldefs.BucketCount]metric.Int64ObservableGauge
	observables := make([]metric.Observable, 0, internaldefs.BucketCount+2)

	for i, bound := range internaldefs.Bounds {
		name := def.Name + "_bucket_le_" + bound.Suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return nil, nil, fmt.Errorf("bucket gauge %s: %w", name, err)
		}
		buckets[i] = ins
		observables = append(observables, ins)
	}

	count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram total sample count."))
	if err != nil {
		return nil, nil, fmt.Errorf("count gauge %s: %w", def.Name, err)
	}
	sum, err := meter.Float64ObservableGauge(def.Name+"_sum",
		metric.WithDescription("Histogram total observed seconds."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("sum gauge %s: %w", def.Name, err)
	}
	observables = append(observables, count, sum)

	observe := func(o metric.Observer, s hsAuth.MetricsSnapshot) {
		cumulative := internaldefs.Cumulative(s.Histograms[id])
		for i, ins := range buckets {
			o.ObserveInt64(ins, int64(cumulative[i]))
		}
		o.ObserveInt64(count, int64(cumulative[internaldefs.BucketCount-1]))
		o.ObserveFloat64(sum, s.LatencySums[id].Seconds())
	}
	return observables, []observeFunc{observe}, nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
