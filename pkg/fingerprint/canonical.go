package fingerprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
)

// ErrMalformedJSON is returned when input is not a single valid JSON value
// encoded as UTF-8.
var ErrMalformedJSON = errors.New("malformed JSON")

// Canonicalize returns the RFC 8785 canonical form of raw JSON text.
// Invalid input is rejected before transformation so the failure does not
// depend on how far the transformer gets. json.Valid alone lets invalid
// UTF-8 through inside strings.
func Canonicalize(raw []byte) (string, error) {
	if !utf8.Valid(raw) || !json.Valid(raw) {
		return "", ErrMalformedJSON
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return string(canonical), nil
}

// CanonicalizeValue marshals v and returns its canonical form.
func CanonicalizeValue(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return Canonicalize(raw)
}
