package ledger

import (
	"context"
	"time"

	"didlab/internal/ledger/metrics"
	"didlab/internal/platform/tracer"
	"didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

// Instrumented decorates a Ledger with spans and call metrics.
type Instrumented struct {
	next    Ledger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
}

// NewInstrumented wraps next. Nil tracer or metrics disable that concern.
func NewInstrumented(next Ledger, tr tracer.Tracer, m *metrics.Metrics) *Instrumented {
	if tr == nil {
		tr = tracer.NewNoop()
	}
	return &Instrumented{next: next, tracer: tr, metrics: m}
}

func (l *Instrumented) Issuer() domain.Address { return l.next.Issuer() }

func (l *Instrumented) Exists(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (exists bool, err error) {
	ctx, span := l.tracer.Start(ctx, tracer.SpanLedgerExists,
		tracer.String(tracer.AttrSubject, subject.String()),
		tracer.String(tracer.AttrFingerprint, fp.String()),
	)
	defer l.observe(OpExists, span, time.Now(), &err)

	exists, err = l.next.Exists(ctx, subject, fp)
	span.SetAttributes(tracer.Bool(tracer.AttrExists, exists))
	return exists, err
}

func (l *Instrumented) Create(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (tx TxID, err error) {
	ctx, span := l.tracer.Start(ctx, tracer.SpanLedgerCreate,
		tracer.String(tracer.AttrSubject, subject.String()),
		tracer.String(tracer.AttrFingerprint, fp.String()),
	)
	defer l.observe(OpCreate, span, time.Now(), &err)

	tx, err = l.next.Create(ctx, subject, fp)
	if err == nil {
		span.SetAttributes(tracer.String(tracer.AttrLedgerTx, tx.String()))
	}
	return tx, err
}

func (l *Instrumented) Revoke(ctx context.Context, caller domain.Address, fp fingerprint.Fingerprint) (tx TxID, err error) {
	ctx, span := l.tracer.Start(ctx, tracer.SpanLedgerRevoke,
		tracer.String(tracer.AttrSubject, caller.String()),
		tracer.String(tracer.AttrFingerprint, fp.String()),
	)
	defer l.observe(OpRevoke, span, time.Now(), &err)

	tx, err = l.next.Revoke(ctx, caller, fp)
	if err == nil {
		span.SetAttributes(tracer.String(tracer.AttrLedgerTx, tx.String()))
	}
	return tx, err
}

func (l *Instrumented) observe(op Op, span tracer.Span, start time.Time, errp *error) {
	err := *errp
	l.metrics.ObserveCall(string(op), time.Since(start).Seconds())
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindUnavailable
		}
		l.metrics.IncError(string(op), string(kind))
		span.SetAttributes(tracer.String(tracer.AttrLedgerKind, string(kind)))
	}
	span.End(err)
}

var _ Ledger = (*Instrumented)(nil)
