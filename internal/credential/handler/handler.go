package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"didlab/internal/credential/models"
	"didlab/internal/credential/resolver"
	credservice "didlab/internal/credential/service"
	id "didlab/pkg/domain"
	dErrors "didlab/pkg/domain-errors"
	"didlab/pkg/platform/httputil"
	"didlab/pkg/requestcontext"
)

// SubjectHeader carries the revoking caller's address. It is a claim, not an
// authenticated identity: the handler only parses it. The EVM ledger enforces
// it by refusing callers other than the issuer account it signs for; the
// in-memory ledger checks it against the recorded subject, so anyone who
// knows a subject and fingerprint can revoke there. Deployments that expose
// revoke should put it behind WithRevokeGuard.
const SubjectHeader = "X-Subject-Address"

// Service defines the credential operations used by the handler.
type Service interface {
	Issue(ctx context.Context, cmd models.IssueCommand) (*models.IssueResult, error)
	Verify(ctx context.Context, cmd models.VerifyCommand) (*models.VerifyResult, error)
	Revoke(ctx context.Context, cmd models.RevokeCommand) (*models.RevokeResult, error)
	Export(ctx context.Context, rawSubject string) (*models.ExportBundle, error)
}

// Handler wires credential endpoints to the credential service.
type Handler struct {
	service  Service
	resolver *resolver.Resolver
	logger   *slog.Logger

	issueGuard  func(http.Handler) http.Handler
	revokeGuard func(http.Handler) http.Handler
	exportGuard func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithIssueGuard wraps the issue route, typically with an API key check.
func WithIssueGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.issueGuard = mw }
}

// WithRevokeGuard wraps the revoke route. The guard runs before
// SubjectHeader is read.
func WithRevokeGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.revokeGuard = mw }
}

// WithExportGuard wraps the export route.
func WithExportGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.exportGuard = mw }
}

// New constructs a credential handler.
func New(service Service, r *resolver.Resolver, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, resolver: r, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts credential endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/credentials", func(r chi.Router) {
		r.With(middlewares(h.issueGuard)...).Post("/issue", h.HandleIssue)
		r.Post("/verify", h.HandleVerify)
		r.With(middlewares(h.revokeGuard)...).Post("/revoke", h.HandleRevoke)
		r.With(middlewares(h.exportGuard)...).Get("/export", h.HandleExport)
	})
}

func middlewares(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}

// HandleIssue handles POST /credentials/issue.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	payload, err := h.resolver.ResolveIssue(req.ResolverInput())
	if err != nil {
		h.logger.WarnContext(ctx, "issue payload rejected",
			"request_id", requestID,
			"subject_address", req.ParsedSubject(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Issue(ctx, models.IssueCommand{
		Subject:      req.ParsedSubject(),
		Payload:      payload,
		FriendlyName: req.FriendlyName,
		Description:  req.Description,
	})
	if err != nil {
		if partial, ok := models.AsPartialIssuance(err); ok {
			httputil.WriteJSON(w, httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err)), PartialIssuanceResponse{
				Error:       httputil.DomainCodeToHTTPCode(dErrors.CodeOf(err)),
				Description: "credential recorded on the ledger but not stored; retry the request",
				Fingerprint: partial.Fingerprint.String(),
				LedgerTxID:  partial.LedgerTxID.String(),
				Retryable:   true,
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toIssueResponse(result))
}

// HandleVerify handles POST /credentials/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	w.Header().Set("Cache-Control", "no-store")

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	fp, source, err := h.resolver.ResolveVerify(req.ResolverInput())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Verify(ctx, models.VerifyCommand{
		Subject:     req.ParsedSubject(),
		Fingerprint: fp,
		Source:      source,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to verify credential",
			"request_id", requestID,
			"subject_address", req.ParsedSubject(),
			"fingerprint", fp,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{
		Verified:       result.Verified,
		SubjectAddress: result.Subject.String(),
		Fingerprint:    result.Fingerprint.String(),
		Source:         result.Source.String(),
	})
}

// HandleRevoke handles POST /credentials/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	raw := strings.TrimSpace(r.Header.Get(SubjectHeader))
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, SubjectHeader+" header is required"))
		return
	}
	caller, err := id.ParseAddress(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Revoke(ctx, models.RevokeCommand{
		Caller:      caller,
		Fingerprint: req.ParsedFingerprint(),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{
		LedgerTxID:  result.LedgerTxID.String(),
		Fingerprint: result.Fingerprint.String(),
	})
}

// HandleExport handles GET /credentials/export?subjectAddress=.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	bundle, err := h.service.Export(ctx, r.URL.Query().Get("subjectAddress"))
	if err != nil {
		h.logger.WarnContext(ctx, "export failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	body, err := json.MarshalIndent(toExportResponse(bundle), "", "  ")
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode export"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, ExportFileName(bundle)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body) //nolint:errcheck // headers already sent
}

// ExportFileName is did_lab_backup_<first 6 chars of the address>_<unix millis>.json.
func ExportFileName(bundle *models.ExportBundle) string {
	return fmt.Sprintf("did_lab_backup_%s_%d.json", bundle.SubjectNormalized.Short(), bundle.ExportedAt.UnixMilli())
}

var _ Service = (*credservice.Service)(nil)
