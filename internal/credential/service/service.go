package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"didlab/internal/audit"
	"didlab/internal/credential/metrics"
	"didlab/internal/credential/models"
	"didlab/internal/credential/store"
	"didlab/internal/ledger"
	id "didlab/pkg/domain"
	dErrors "didlab/pkg/domain-errors"
	"didlab/pkg/fingerprint"
	requesttime "didlab/pkg/platform/middleware/requesttime"
	platformsync "didlab/pkg/platform/sync"
	"didlab/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Ledger,Store,VerificationCache,AuditPublisher

// Ledger is the on-chain existence registry.
type Ledger interface {
	Exists(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint) (bool, error)
	Create(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint) (ledger.TxID, error)
	Revoke(ctx context.Context, caller id.Address, fp fingerprint.Fingerprint) (ledger.TxID, error)
	Issuer() id.Address
}

// Store persists off-chain records keyed by fingerprint.
type Store interface {
	FindByFingerprint(ctx context.Context, fp fingerprint.Fingerprint) (*models.Record, error)
	Upsert(ctx context.Context, record models.Record) (*models.Record, bool, error)
	ListBySubject(ctx context.Context, subject id.Address) ([]models.Record, error)
}

// VerificationCache remembers positive verification results. Lookup returns
// the revocation epoch that MarkVerified must present; a write carrying an
// epoch older than the latest Invalidate is refused.
type VerificationCache interface {
	Lookup(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint) (bool, uint64, error)
	MarkVerified(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint, epoch uint64) (bool, error)
	Invalidate(ctx context.Context, fp fingerprint.Fingerprint) error
}

// AuditPublisher emits audit events for credential lifecycle actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Option configures the credential service.
type Option func(*Service)

// Service anchors credential fingerprints on the ledger and keeps the record
// store consistent with it.
type Service struct {
	ledger  Ledger
	store   Store
	cache   VerificationCache
	auditor AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	// issueLocks serializes Issue per fingerprint within this process.
	issueLocks *platformsync.ShardedMutex
}

// New creates a credential service with the required dependencies.
func New(l Ledger, s Store, opts ...Option) *Service {
	svc := &Service{
		ledger:     l,
		store:      s,
		logger:     slog.New(slog.DiscardHandler),
		issueLocks: platformsync.NewShardedMutex(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditor(auditor AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// WithCache enables serving positive verifications from c. A nil c leaves
// the cache disabled. Revocations made outside this service stay invisible
// to c until its entries expire.
func WithCache(c VerificationCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Issue anchors the payload's fingerprint for cmd.Subject and stores the
// record, reconciling whatever state a previous attempt left behind.
//
// The ledger entry is written before the record. If the ledger write succeeds
// and the store write fails, the returned error is a *models.PartialIssuanceError
// and calling Issue again completes the record without a second transaction.
func (s *Service) Issue(ctx context.Context, cmd models.IssueCommand) (*models.IssueResult, error) {
	if cmd.Subject.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject address is required")
	}
	if cmd.Payload == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential payload is required")
	}
	resolved := cmd.Payload.Resolve()
	fp, err := fingerprint.Parse(resolved.Fingerprint.String())
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "bad fingerprint format")
	}

	defer s.observe("issue", time.Now())
	unlock := s.issueLocks.LockKey(fp.String())
	defer unlock()

	logger := s.logger.With(
		"request_id", requestcontext.RequestID(ctx),
		"subject_address", cmd.Subject.String(),
		"fingerprint", fp.String(),
		"mode", resolved.Mode.String(),
	)

	onLedger, existing, err := s.lookup(ctx, cmd.Subject, fp)
	if err != nil {
		s.metrics.IncrementIssued(resolved.Mode.String(), metrics.OutcomeFailed)
		return nil, err
	}
	if existing != nil && existing.Subject != cmd.Subject {
		s.metrics.IncrementIssued(resolved.Mode.String(), metrics.OutcomeConflict)
		return nil, dErrors.New(dErrors.CodeConflict, "fingerprint already recorded for another subject")
	}

	var txID ledger.TxID
	if !onLedger {
		txID, err = s.ledger.Create(ctx, cmd.Subject, fp)
		switch {
		case err == nil:
			logger.InfoContext(ctx, "ledger entry created", "ledger_tx_id", txID.String())
		case ledger.IsAlreadyRecorded(err):
			// A concurrent issuer anchored the same entry first.
			logger.InfoContext(ctx, "ledger entry already recorded by a concurrent issuer")
			onLedger = true
		default:
			s.metrics.IncrementIssued(resolved.Mode.String(), metrics.OutcomeFailed)
			logger.WarnContext(ctx, "ledger create failed", "error", err)
			return nil, dErrors.Wrap(err, dErrors.CodeLedger, "ledger rejected credential anchoring: "+err.Error())
		}
	}

	now := requesttime.Now(ctx)
	record := models.Record{
		ID:           id.NewRecordID(),
		Subject:      cmd.Subject,
		Issuer:       s.ledger.Issuer(),
		Fingerprint:  fp,
		FriendlyName: cmd.FriendlyName,
		Description:  cmd.Description,
		Blob:         resolved.Blob,
		Mode:         resolved.Mode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	stored, _, err := s.store.Upsert(ctx, record)
	if err != nil {
		return nil, s.storeFailure(ctx, logger, cmd.Subject, resolved.Mode, fp, txID, err)
	}

	result := &models.IssueResult{
		RecordID:        stored.ID,
		Fingerprint:     fp,
		LedgerTxID:      txID,
		Created:         !(onLedger && existing != nil),
		Mode:            resolved.Mode,
		AlreadyOnLedger: onLedger,
		AlreadyStored:   existing != nil,
	}

	outcome, event := metrics.OutcomeCreated, audit.EventCredentialIssued
	if !result.Created {
		outcome, event = metrics.OutcomeReconciled, audit.EventCredentialReconciled
	}
	s.metrics.IncrementIssued(resolved.Mode.String(), outcome)
	s.emitAudit(ctx, event, cmd.Subject, fp, txID, outcome)
	logger.InfoContext(ctx, "credential issued",
		"record_id", stored.ID.String(),
		"created", result.Created,
		"ledger_tx_id", txID.String(),
	)
	return result, nil
}

// lookup reads ledger and store state in parallel.
func (s *Service) lookup(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint) (bool, *models.Record, error) {
	var onLedger bool
	var existing *models.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := s.ledger.Exists(gctx, subject, fp)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeLedger, "ledger lookup failed: "+err.Error())
		}
		onLedger = ok
		return nil
	})
	g.Go(func() error {
		rec, err := s.store.FindByFingerprint(gctx, fp)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "record lookup failed")
		}
		existing = rec
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, nil, err
	}
	return onLedger, existing, nil
}

func (s *Service) storeFailure(ctx context.Context, logger *slog.Logger, subject id.Address, mode models.Mode, fp fingerprint.Fingerprint, txID ledger.TxID, err error) error {
	code, outcome := dErrors.CodeStorage, metrics.OutcomeFailed
	msg := "failed to store credential record"
	if errors.Is(err, store.ErrSubjectMismatch) {
		code, outcome = dErrors.CodeConflict, metrics.OutcomeConflict
		msg = "fingerprint already recorded for another subject"
	}
	wrapped := dErrors.Wrap(err, code, msg)

	if txID == "" {
		s.metrics.IncrementIssued(mode.String(), outcome)
		logger.WarnContext(ctx, "record upsert failed", "error", err)
		return wrapped
	}

	s.metrics.IncrementIssued(mode.String(), metrics.OutcomePartial)
	logger.ErrorContext(ctx, "ledger entry recorded but record upsert failed",
		"ledger_tx_id", txID.String(),
		"error", err,
	)
	s.emitAudit(ctx, audit.EventIssuancePartial, subject, fp, txID, "partial")
	return &models.PartialIssuanceError{Fingerprint: fp, LedgerTxID: txID, Err: wrapped}
}

// Verify reports whether the ledger holds an active entry for the subject and
// fingerprint. It never reads the record store.
func (s *Service) Verify(ctx context.Context, cmd models.VerifyCommand) (*models.VerifyResult, error) {
	if cmd.Subject.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject address is required")
	}
	fp, err := fingerprint.Parse(cmd.Fingerprint.String())
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "bad fingerprint format")
	}
	defer s.observe("verify", time.Now())

	result := &models.VerifyResult{Subject: cmd.Subject, Fingerprint: fp, Source: cmd.Source}

	hit, epoch, cacheable := s.cacheLookup(ctx, cmd.Subject, fp)
	if hit {
		result.Verified = true
		s.metrics.IncrementCacheHit()
		s.metrics.IncrementVerification(true, cmd.Source.String())
		return result, nil
	}

	ok, err := s.ledger.Exists(ctx, cmd.Subject, fp)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedger, "ledger lookup failed: "+err.Error())
	}
	result.Verified = ok
	s.metrics.IncrementVerification(ok, cmd.Source.String())

	if ok && cacheable {
		stored, err := s.cache.MarkVerified(ctx, cmd.Subject, fp, epoch)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "failed to cache verification",
				"fingerprint", fp.String(),
				"error", err,
			)
		case !stored:
			s.logger.DebugContext(ctx, "verification not cached, revocation seen during lookup",
				"fingerprint", fp.String(),
			)
		}
	}
	return result, nil
}

// cacheLookup reports a hit and the epoch to write back under. cacheable is
// false when there is no cache or the read failed.
func (s *Service) cacheLookup(ctx context.Context, subject id.Address, fp fingerprint.Fingerprint) (hit bool, epoch uint64, cacheable bool) {
	if s.cache == nil {
		return false, 0, false
	}
	ok, epoch, err := s.cache.Lookup(ctx, subject, fp)
	if err != nil {
		s.logger.WarnContext(ctx, "verification cache read failed", "error", err)
		return false, 0, false
	}
	return ok, epoch, true
}

// Revoke forwards a revocation to the ledger, which decides whether the
// caller may revoke. It is not retried.
func (s *Service) Revoke(ctx context.Context, cmd models.RevokeCommand) (*models.RevokeResult, error) {
	if cmd.Caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject address is required")
	}
	fp, err := fingerprint.Parse(cmd.Fingerprint.String())
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "bad fingerprint format")
	}
	defer s.observe("revoke", time.Now())

	txID, err := s.ledger.Revoke(ctx, cmd.Caller, fp)
	if err != nil {
		s.metrics.IncrementRevocation(string(ledger.KindOf(err)))
		s.logger.WarnContext(ctx, "ledger revoke failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_address", cmd.Caller.String(),
			"fingerprint", fp.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeLedger, "ledger rejected revocation: "+err.Error())
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, fp); err != nil {
			s.logger.ErrorContext(ctx, "failed to invalidate verification cache",
				"fingerprint", fp.String(),
				"error", err,
			)
		}
	}

	s.metrics.IncrementRevocation("revoked")
	s.emitAudit(ctx, audit.EventCredentialRevoked, cmd.Caller, fp, txID, "revoked")
	s.logger.InfoContext(ctx, "credential revoked",
		"request_id", requestcontext.RequestID(ctx),
		"subject_address", cmd.Caller.String(),
		"fingerprint", fp.String(),
		"ledger_tx_id", txID.String(),
	)
	return &models.RevokeResult{Fingerprint: fp, LedgerTxID: txID}, nil
}

// Export returns every stored record of a subject, oldest first. The raw
// subject string is echoed back alongside its normalized form.
func (s *Service) Export(ctx context.Context, rawSubject string) (*models.ExportBundle, error) {
	subject, err := id.ParseAddress(rawSubject)
	if err != nil {
		return nil, err
	}
	defer s.observe("export", time.Now())

	records, err := s.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list credential records")
	}

	bundle := &models.ExportBundle{
		Version:           models.ExportVersion,
		ExportedAt:        requesttime.Now(ctx),
		Subject:           rawSubject,
		SubjectNormalized: subject,
		Total:             len(records),
		Records:           records,
	}
	if len(records) == 0 {
		bundle.Note = models.ExportEmptyNote
	}

	s.metrics.ObserveExport(len(records))
	s.emitAudit(ctx, audit.EventCredentialsExported, subject, "", "", "exported")
	return bundle, nil
}

func (s *Service) observe(op string, start time.Time) {
	s.metrics.ObserveLatency(op, time.Since(start).Seconds())
}

func (s *Service) emitAudit(ctx context.Context, action audit.AuditEvent, subject id.Address, fp fingerprint.Fingerprint, txID ledger.TxID, decision string) {
	if s.auditor == nil {
		return
	}

	event := audit.Event{
		Action:      action.String(),
		Subject:     subject.String(),
		Fingerprint: fp.String(),
		LedgerTxID:  txID.String(),
		Decision:    decision,
		RequestID:   requestcontext.RequestID(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"action", event.Action,
			"subject_address", event.Subject,
		)
	}
}
