package action

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kerno/internal/state"
)

// ErrEmptyOperation is returned when building an operation without steps.
var ErrEmptyOperation = errors.New("empty operations are not allowed")

var tracer = otel.Tracer("kerno/action")

// Metrics counts and times the steps of operations.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kerno_action_runs_total",
				Help: "Total number of operation steps executed.",
			},
			[]string{"operation", "action", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kerno_action_duration_seconds",
				Help:    "Duration of operation steps in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "action"},
		),
	}
	if err := reg.Register(m.runs); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(operation, action string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(operation, action, outcome).Inc()
	m.duration.WithLabelValues(operation, action).Observe(time.Since(started).Seconds())
}

type titleKey struct{}

// Title returns the title of the operation running in ctx.
func Title(ctx context.Context) string {
	title, _ := ctx.Value(titleKey{}).(string)
	return title
}

// Operation is a named series of actions executed on one request context.
type Operation[P Context] struct {
	Title   string
	actions []Action[P]
	metrics *Metrics
	log     *slog.Logger
}

func NewOperation[P Context](title string, actions ...Action[P]) (*Operation[P], error) {
	if len(actions) == 0 {
		return nil, ErrEmptyOperation
	}
	return &Operation[P]{
		Title:   title,
		actions: actions,
		log:     slog.With("component", "operation", "operation", title),
	}, nil
}

// Instrument records the steps of o in m.
func (o *Operation[P]) Instrument(m *Metrics) *Operation[P] {
	o.metrics = m
	return o
}

// Run executes the steps in order and returns the envelope they filled.
// The first failing step stops the operation.
func (o *Operation[P]) Run(ctx context.Context, p P) (*state.Rezulto, error) {
	ctx = context.WithValue(ctx, titleKey{}, o.Title)
	ctx, span := tracer.Start(ctx, o.Title)
	defer span.End()

	for _, a := range o.actions {
		if err := o.step(ctx, a, p); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	return p.Rezulto(), nil
}

func (o *Operation[P]) step(ctx context.Context, a Action[P], p P) error {
	name := nameOf(a)
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("kerno.operation", o.Title),
		attribute.String("kerno.action", name),
	))
	defer span.End()

	started := time.Now()
	err := a.Run(ctx, p)
	o.metrics.observe(o.Title, name, started, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Debug("step failed", "action", name, "error", err)
		return err
	}
	o.log.Debug("step done", "action", name, "duration", time.Since(started))
	return nil
}
