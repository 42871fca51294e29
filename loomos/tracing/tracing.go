// Package tracing exports the life of every kernel thread as an
// OpenTelemetry span. Dispatch events become span events stamped with the
// simulated clock.
package tracing

import (
	"context"
	"io"

	"github.com/dolthub/swiss"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"loom/loomos/kernel"
)

const instrumentation = "loom/loomos/tracing"

// Tracer is a kernel.Observer recording one span per thread under a root
// span for the whole boot.
type Tracer struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
	clock  func() uint64

	BootID string

	rootCtx context.Context
	root    trace.Span
	spans   *swiss.Map[kernel.ThreadID, trace.Span]
	maxID   kernel.ThreadID
}

var _ kernel.Observer = (*Tracer)(nil)

// New returns a tracer exporting spans as JSON lines to w.
func New(w io.Writer, version string, clock func() uint64) (*Tracer, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	return NewWithExporter(exporter, version, clock)
}

// NewWithExporter returns a tracer exporting spans synchronously to
// exporter. clock supplies the simulated time recorded on events.
func NewWithExporter(exporter sdktrace.SpanExporter, version string, clock func() uint64) (*Tracer, error) {
	bootID := uuid.NewString()
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "loom"),
			attribute.String("service.version", version),
			attribute.String("loom.boot_id", bootID),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	if clock == nil {
		clock = func() uint64 { return 0 }
	}

	t := &Tracer{
		tp:     tp,
		tracer: tp.Tracer(instrumentation),
		clock:  clock,
		BootID: bootID,
		spans:  swiss.NewMap[kernel.ThreadID, trace.Span](16),
	}
	t.rootCtx, t.root = t.tracer.Start(context.Background(), "boot",
		trace.WithAttributes(attribute.String("loom.boot_id", bootID)))
	return t, nil
}

func (t *Tracer) ThreadReady(th *kernel.Thread)   { t.event(th, "ready") }
func (t *Tracer) ThreadRunning(th *kernel.Thread) { t.event(th, "running") }
func (t *Tracer) ThreadBlocked(th *kernel.Thread) { t.event(th, "blocked") }

func (t *Tracer) ThreadFinishing(th *kernel.Thread) {
	span := t.span(th)
	span.AddEvent("finished", trace.WithAttributes(attribute.Int64("loom.time", int64(t.clock()))))
	span.SetStatus(codes.Ok, "")
	span.End()
	t.spans.Delete(th.ID())
}

// Shutdown ends the spans still open, then the root span, and flushes the
// exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	// threads that never finished (main and idle at least)
	for id := kernel.ThreadID(0); id <= t.maxID; id++ {
		if span, ok := t.spans.Get(id); ok {
			span.SetStatus(codes.Unset, "machine halted")
			span.End()
			t.spans.Delete(id)
		}
	}
	t.root.End()
	return t.tp.Shutdown(ctx)
}

func (t *Tracer) event(th *kernel.Thread, name string) {
	t.span(th).AddEvent(name, trace.WithAttributes(attribute.Int64("loom.time", int64(t.clock()))))
}

func (t *Tracer) span(th *kernel.Thread) trace.Span {
	if span, ok := t.spans.Get(th.ID()); ok {
		return span
	}
	_, span := t.tracer.Start(t.rootCtx, "thread "+th.Name(),
		trace.WithAttributes(
			attribute.Int64("loom.thread.id", int64(th.ID())),
			attribute.String("loom.thread.name", th.Name()),
		))
	t.spans.Put(th.ID(), span)
	if th.ID() > t.maxID {
		t.maxID = th.ID()
	}
	return span
}
