package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	dErrors "didlab/pkg/domain-errors"
)

// DecodeJSON reads exactly one JSON value from the body into T. On failure it
// writes the error response and returns nil, false. A body cut off by
// BodyLimit is reported as payload_too_large.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&req)
	if err == nil && dec.More() {
		err = errTrailingData
	}
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, decodeError(err))
		return nil, false
	}
	return &req, true
}

var errTrailingData = errors.New("trailing data after JSON body")

func decodeError(err error) error {
	var (
		tooLarge  *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		return dErrors.New(dErrors.CodePayloadTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	case errors.As(err, &syntaxErr):
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("malformed request body at offset %d", syntaxErr.Offset))
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
	case errors.Is(err, errTrailingData):
		return dErrors.New(dErrors.CodeBadRequest, "request body must be a single JSON object")
	default:
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
}

// Validatable is implemented by requests that check themselves.
type Validatable interface {
	Validate() error
}

// Sanitizable is implemented by requests that trim their fields first.
type Sanitizable interface {
	Sanitize()
}

// PrepareRequest sanitizes then validates a request.
func PrepareRequest(req any) error {
	if s, ok := req.(Sanitizable); ok {
		s.Sanitize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare is DecodeJSON followed by PrepareRequest. Validation
// errors without a domain code are reported as validation_failed.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}
	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		var domainErr *dErrors.Error
		if !errors.As(err, &domainErr) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
