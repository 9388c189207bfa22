package fingerprint

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Prefix is prepended to every rendered fingerprint.
const Prefix = "0x"

// HexLength is the number of hex digits following the prefix.
const HexLength = 64

// ErrInvalidFormat is returned by Parse for anything other than 0x + 64 hex.
var ErrInvalidFormat = errors.New("fingerprint must be 0x followed by 64 hex characters")

// Fingerprint is a normalized (lowercase) content digest.
type Fingerprint string

// Of hashes the UTF-8 bytes of an already canonical string.
func Of(canonical string) Fingerprint {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(canonical)) //nolint:errcheck // hash.Hash never returns an error
	return Fingerprint(Prefix + hex.EncodeToString(h.Sum(nil)))
}

// FromJSON canonicalizes raw JSON and fingerprints the result.
func FromJSON(raw []byte) (Fingerprint, error) {
	canonical, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	return Of(canonical), nil
}

// Parse validates a client supplied fingerprint and returns it lowercased.
// The prefix is matched case-insensitively ("0X" is accepted).
func Parse(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(Prefix)+HexLength || !strings.EqualFold(s[:len(Prefix)], Prefix) {
		return "", ErrInvalidFormat
	}
	digits := s[len(Prefix):]
	if _, err := hex.DecodeString(digits); err != nil {
		return "", ErrInvalidFormat
	}
	return Fingerprint(Prefix + strings.ToLower(digits)), nil
}

// IsValid reports whether s parses as a fingerprint.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Equal compares two fingerprints case-insensitively.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return strings.EqualFold(string(f), string(other))
}

// Bytes32 returns the raw 32-byte digest. The fingerprint must be valid.
func (f Fingerprint) Bytes32() ([32]byte, error) {
	var out [32]byte
	parsed, err := Parse(string(f))
	if err != nil {
		return out, err
	}
	b, _ := hex.DecodeString(string(parsed[len(Prefix):])) //nolint:errcheck // validated by Parse
	copy(out[:], b)
	return out, nil
}

func (f Fingerprint) String() string { return string(f) }

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool { return f == "" }
