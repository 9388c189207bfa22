// Package ledger defines the existence registry the credential service anchors
// fingerprints in. Implementations live in subpackages: evm talks to the
// deployed contract over JSON-RPC, memory keeps state in process for local
// runs and tests.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

// TxID identifies a confirmed ledger transaction.
type TxID string

func (t TxID) String() string { return string(t) }

// Ledger is the on-chain existence registry keyed by (subject, fingerprint).
//
// Create and Revoke block until the transaction has one confirmation. Neither
// can be undone by the caller; a failed call must not be assumed to have had
// no effect unless its Kind says so.
type Ledger interface {
	Exists(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (bool, error)
	Create(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (TxID, error)
	Revoke(ctx context.Context, caller domain.Address, fp fingerprint.Fingerprint) (TxID, error)
	// Issuer is the account the service writes from.
	Issuer() domain.Address
}

// Op names a ledger operation for errors, spans, and metrics.
type Op string

const (
	OpExists Op = "exists"
	OpCreate Op = "create"
	OpRevoke Op = "revoke"
)

// Kind classifies ledger failures.
type Kind string

const (
	KindReverted        Kind = "reverted"
	KindUnderpriced     Kind = "underpriced"
	KindTimeout         Kind = "timeout"
	KindUnavailable     Kind = "unavailable"
	KindAlreadyRecorded Kind = "already_recorded"
	KindNotFound        Kind = "not_found"
	KindUnauthorized    Kind = "unauthorized"
)

// Error carries the ledger's own reason string for diagnostics.
type Error struct {
	Op     Op
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ledger %s %s: %s", e.Op, e.Kind, e.Reason)
	}
	return fmt.Sprintf("ledger %s %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of a ledger error in the chain, or "" if none.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsAlreadyRecorded reports whether a create failed only because the entry
// already exists (typically a concurrent issuer won the race).
func IsAlreadyRecorded(err error) bool {
	return KindOf(err) == KindAlreadyRecorded
}

// FromContext converts a context failure into a timeout error. It returns nil
// when ctx is still live.
func FromContext(ctx context.Context, op Op) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: op, Kind: KindTimeout, Reason: err.Error(), Err: err}
	}
	return nil
}
