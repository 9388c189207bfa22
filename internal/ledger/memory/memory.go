// Package memory implements an in-process ledger for local runs and tests.
// It follows the contract's rules: only the issuer creates, only the subject
// of an active entry revokes, and a second create for an active entry reverts.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"didlab/internal/ledger"
	"didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

type entryKey struct {
	subject domain.Address
	fp      fingerprint.Fingerprint
}

type entry struct {
	active    bool
	createdTx ledger.TxID
	revokedTx ledger.TxID
}

// Ledger is safe for concurrent use. Transactions confirm immediately.
type Ledger struct {
	mu      sync.Mutex
	issuer  domain.Address
	entries map[entryKey]*entry
	txCount int
}

// New constructs an empty ledger that accepts creates from issuer.
func New(issuer domain.Address) *Ledger {
	return &Ledger{
		issuer:  issuer,
		entries: make(map[entryKey]*entry),
	}
}

func (l *Ledger) Issuer() domain.Address { return l.issuer }

func (l *Ledger) Exists(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (bool, error) {
	if err := ledger.FromContext(ctx, ledger.OpExists); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[entryKey{subject, fp}]
	return ok && e.active, nil
}

func (l *Ledger) Create(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (ledger.TxID, error) {
	if err := ledger.FromContext(ctx, ledger.OpCreate); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := entryKey{subject, fp}
	if e, ok := l.entries[key]; ok && e.active {
		return "", &ledger.Error{Op: ledger.OpCreate, Kind: ledger.KindAlreadyRecorded, Reason: "credential already issued"}
	}
	tx := l.nextTx()
	// A revoked entry may be re-issued; the contract treats it as a fresh set.
	l.entries[key] = &entry{active: true, createdTx: tx}
	return tx, nil
}

func (l *Ledger) Revoke(ctx context.Context, caller domain.Address, fp fingerprint.Fingerprint) (ledger.TxID, error) {
	if err := ledger.FromContext(ctx, ledger.OpRevoke); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[entryKey{caller, fp}]
	if !ok {
		for k := range l.entries {
			if k.fp == fp {
				return "", &ledger.Error{Op: ledger.OpRevoke, Kind: ledger.KindUnauthorized, Reason: "caller is not the credential subject"}
			}
		}
		return "", &ledger.Error{Op: ledger.OpRevoke, Kind: ledger.KindNotFound, Reason: "credential not found"}
	}
	if !e.active {
		return "", &ledger.Error{Op: ledger.OpRevoke, Kind: ledger.KindReverted, Reason: "credential already revoked"}
	}
	tx := l.nextTx()
	e.active = false
	e.revokedTx = tx
	return tx, nil
}

// TxCount returns the number of confirmed transactions, for tests.
func (l *Ledger) TxCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txCount
}

func (l *Ledger) nextTx() ledger.TxID {
	l.txCount++
	var b [32]byte
	_, _ = rand.Read(b[:]) //nolint:errcheck // crypto/rand does not fail on supported platforms
	return ledger.TxID("0x" + hex.EncodeToString(b[:]))
}

var _ ledger.Ledger = (*Ledger)(nil)
