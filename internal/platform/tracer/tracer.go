// Package tracer provides a lightweight tracing abstraction.
//
// The ledger decorator depends on Tracer and Span rather than on
// OpenTelemetry. NoopTracer is the default; OTelTracer turns each ledger call
// into a client span.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording err when non-nil.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a span; the returned context carries it to child calls.
	//
	// Example:
	//   ctx, span := tr.Start(ctx, tracer.SpanLedgerCreate,
	//       tracer.String(tracer.AttrFingerprint, fp.String()),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanLedgerExists = "ledger.exists"
	SpanLedgerCreate = "ledger.create"
	SpanLedgerRevoke = "ledger.revoke"
)

// Attribute keys. Fingerprints are public ledger values and safe to attach;
// blobs never are.
const (
	AttrFingerprint   = "credential.fingerprint"
	AttrSubject       = "credential.subject"
	AttrLedgerTx      = "ledger.tx_id"
	AttrLedgerKind    = "ledger.error_kind"
	AttrExists        = "ledger.exists"
	AttrLedgerBackend = "ledger.backend"
)

// NoopTracer discards everything. Services default to it when no tracer is
// configured.
type NoopTracer struct{}

func NewNoop() *NoopTracer { return &NoopTracer{} }

// Start returns ctx unchanged.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                     {}
func (noopSpan) SetAttributes(...Attribute)    {}
func (noopSpan) AddEvent(string, ...Attribute) {}

var (
	_ Tracer = NoopTracer{}
	_ Span   = noopSpan{}
)
