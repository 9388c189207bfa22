// Package fingerprint turns JSON credential documents into deterministic
// content fingerprints.
//
// A fingerprint is Keccak-256 over the UTF-8 bytes of the document's RFC 8785
// (JCS) canonical form, rendered as "0x" followed by 64 lowercase hex digits.
// Two documents that differ only in key order or whitespace share a
// fingerprint; any change to a key, value, or type produces a different one.
package fingerprint
