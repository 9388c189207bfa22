package evm

import (
	"context"
	"errors"
	"strings"

	"didlab/internal/ledger"
)

// DefaultAlreadyRecordedReasons match revert strings the registry uses when a
// credential is already active.
var DefaultAlreadyRecordedReasons = []string{
	"already issued",
	"already exists",
	"ja emitida",
	"já emitida",
	"ja existe",
	"já existe",
}

const revertPrefix = "execution reverted"

// classify maps a go-ethereum error onto a ledger.Error, keeping the node's
// message as the reason.
func classify(op ledger.Op, err error, alreadyReasons []string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &ledger.Error{Op: op, Kind: ledger.KindTimeout, Reason: msg, Err: err}
	case strings.Contains(lower, "replacement transaction underpriced"),
		strings.Contains(lower, "transaction underpriced"),
		strings.Contains(lower, "nonce too low"):
		return &ledger.Error{Op: op, Kind: ledger.KindUnderpriced, Reason: msg, Err: err}
	case strings.Contains(lower, revertPrefix):
		reason := revertReason(msg)
		kind := ledger.KindReverted
		for _, r := range alreadyReasons {
			if r != "" && strings.Contains(strings.ToLower(reason), strings.ToLower(r)) {
				kind = ledger.KindAlreadyRecorded
				break
			}
		}
		return &ledger.Error{Op: op, Kind: kind, Reason: reason, Err: err}
	default:
		return &ledger.Error{Op: op, Kind: ledger.KindUnavailable, Reason: msg, Err: err}
	}
}

// revertReason strips the node's "execution reverted:" prefix when present.
func revertReason(msg string) string {
	idx := strings.Index(strings.ToLower(msg), revertPrefix)
	if idx < 0 {
		return msg
	}
	reason := strings.TrimSpace(msg[idx+len(revertPrefix):])
	reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
	if reason == "" {
		return revertPrefix
	}
	return reason
}
