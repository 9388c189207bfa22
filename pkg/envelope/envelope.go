// Package envelope seals credential documents with a passphrase before they
// leave the holder's machine. The server stores the resulting envelope
// verbatim and never sees the key.
//
// Format: PBKDF2-SHA256 derives a 256-bit key from the passphrase and a random
// 16-byte salt; AES-GCM encrypts the compact JSON with a random 12-byte IV.
// Binary fields are standard base64.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Version = "1.0"
	Alg     = "AES-GCM"
	KDF     = "PBKDF2-SHA256"

	DefaultIterations = 150000

	keyLen  = 32
	saltLen = 16
	ivLen   = 12
)

var (
	ErrEmptyPassphrase = errors.New("passphrase is required")
	ErrUnsupported     = errors.New("unsupported envelope parameters")
	ErrDecrypt         = errors.New("envelope could not be decrypted")
)

// Envelope is the encrypted bundle stored as the private-mode blob.
type Envelope struct {
	Version    string `json:"version"`
	Alg        string `json:"alg"`
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
	Ciphertext string `json:"ciphertext"`
}

// Seal encrypts a JSON document. The document is compacted first so the
// plaintext does not depend on the caller's formatting.
func Seal(document []byte, passphrase string, iterations int) (*Envelope, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	var compact any
	if err := json.Unmarshal(document, &compact); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	plaintext, err := json.Marshal(compact)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	salt := make([]byte, saltLen)
	iv := make([]byte, ivLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	aead, err := newAEAD(passphrase, salt, iterations)
	if err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, iv, plaintext, nil)

	return &Envelope{
		Version:    Version,
		Alg:        Alg,
		KDF:        KDF,
		Iterations: iterations,
		IV:         base64.StdEncoding.EncodeToString(iv),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Open decrypts an envelope and returns the JSON document.
func Open(env *Envelope, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if env == nil || env.Alg != Alg || env.KDF != KDF || env.Iterations <= 0 {
		return nil, ErrUnsupported
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != ivLen {
		return nil, ErrUnsupported
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, ErrUnsupported
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrUnsupported
	}

	aead, err := newAEAD(passphrase, salt, env.Iterations)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Marshal renders the envelope as the compact string persisted by the server.
func (e *Envelope) Marshal() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Parse reads an envelope from its JSON form.
func Parse(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return &env, nil
}

func newAEAD(passphrase string, salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
