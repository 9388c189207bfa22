package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultSinkTimeout bounds one background Append.
const DefaultSinkTimeout = 5 * time.Second

// Publisher stamps credential events and hands them to a Sink. In async mode
// events go through a bounded queue; a full queue drops the event rather than
// delaying the credential request that produced it.
type Publisher struct {
	sink        Sink
	queue       chan Event
	wg          sync.WaitGroup
	closeOnce   sync.Once
	logger      *slog.Logger
	sinkTimeout time.Duration
	delivered   *prometheus.CounterVec
	now         func() time.Time
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for a background writer.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

// WithSinkTimeout overrides DefaultSinkTimeout for background writes.
func WithSinkTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.sinkTimeout = d
		}
	}
}

// WithPublisherMetrics counts events by result (written, failed, dropped).
func WithPublisherMetrics(reg prometheus.Registerer) PublisherOption {
	return func(p *Publisher) {
		if reg == nil {
			return
		}
		p.delivered = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "didlab_audit_events_total",
			Help: "Audit events by delivery result",
		}, []string{"result"})
	}
}

func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink, sinkTimeout: DefaultSinkTimeout, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event, filling in the timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if p.queue == nil {
		err := p.sink.Append(ctx, event)
		p.count(err)
		return err
	}

	select {
	case p.queue <- event:
	default:
		p.inc("dropped")
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit queue full, event dropped",
				"action", event.Action,
				"subject_address", event.Subject,
				"request_id", event.RequestID,
			)
		}
	}
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.sinkTimeout)
		err := p.sink.Append(ctx, event)
		cancel()
		p.count(err)
		if err != nil && p.logger != nil {
			p.logger.Error("failed to write audit event",
				"error", err,
				"action", event.Action,
				"subject_address", event.Subject,
				"fingerprint", event.Fingerprint,
			)
		}
	}
}

// Close flushes queued events. Safe to call more than once.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) count(err error) {
	if err != nil {
		p.inc("failed")
		return
	}
	p.inc("written")
}

func (p *Publisher) inc(result string) {
	if p.delivered != nil {
		p.delivered.WithLabelValues(result).Inc()
	}
}
