package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "didlab/ledger"

// OTelTracer emits ledger calls as client spans on an OpenTelemetry tracer.
// Every span carries the ledger backend it was started for.
type OTelTracer struct {
	tracer  trace.Tracer
	backend string
}

type OTelOption func(*OTelTracer)

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) { o.tracer = t }
}

// WithBackend names the ledger implementation ("evm", "memory") recorded as
// AttrLedgerBackend on each span.
func WithBackend(name string) OTelOption {
	return func(o *OTelTracer) { o.backend = name }
}

func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(instrumentationName)
	}
	return t
}

func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	kvs := convert(attrs)
	if t.backend != "" {
		kvs = append(kvs, attribute.String(AttrLedgerBackend, t.backend))
	}
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(kvs...),
	)
	return ctx, ledgerSpan{span: span}
}

type ledgerSpan struct {
	span trace.Span
}

// End marks the span Ok on success. A failed call is recorded as an
// exception event and an Error status carrying the ledger message.
func (s ledgerSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

func (s ledgerSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convert(attrs)...)
}

func (s ledgerSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(convert(attrs)...))
}

// convert drops values it has no attribute type for. Addresses, fingerprints
// and tx ids arrive as fmt.Stringer and are recorded in their string form.
func convert(attrs []Attribute) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs)+1)
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			kvs = append(kvs, attribute.String(a.Key, v))
		case bool:
			kvs = append(kvs, attribute.Bool(a.Key, v))
		case int:
			kvs = append(kvs, attribute.Int(a.Key, v))
		case int64:
			kvs = append(kvs, attribute.Int64(a.Key, v))
		case float64:
			kvs = append(kvs, attribute.Float64(a.Key, v))
		case []string:
			kvs = append(kvs, attribute.StringSlice(a.Key, v))
		case fmt.Stringer:
			kvs = append(kvs, attribute.String(a.Key, v.String()))
		}
	}
	return kvs
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = ledgerSpan{}
)
