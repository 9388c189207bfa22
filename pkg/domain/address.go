package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "didlab/pkg/domain-errors"
)

// Address is a ledger account address in normalized (lowercase 0x-hex) form.
// Subjects and issuers are both identified this way.
type Address string

// ParseAddress validates a 20-byte hex account address and normalizes it.
// Checksum casing is accepted but not required.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be 0x-prefixed")
	}
	if !common.IsHexAddress(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid address format")
	}
	return Address(strings.ToLower(common.HexToAddress(s).Hex())), nil
}

// AddressFromCommon converts a go-ethereum address.
func AddressFromCommon(a common.Address) Address {
	return Address(strings.ToLower(a.Hex()))
}

// Common returns the go-ethereum representation.
func (a Address) Common() common.Address { return common.HexToAddress(string(a)) }

func (a Address) String() string { return string(a) }

func (a Address) IsNil() bool { return a == "" }

// Short returns the first six characters, used in export file names.
func (a Address) Short() string {
	if len(a) <= 6 {
		return string(a)
	}
	return string(a[:6])
}
