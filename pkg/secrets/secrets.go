// Package secrets handles the at-rest encryption applied to certificate
// blobs before they enter the orchestration flow. Blobs are sealed with NaCl
// secretbox under a process-wide symmetric key; the decrypted plaintext is
// only ever held for the duration of a driver call.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the symmetric key length in bytes.
const KeySize = 32

const nonceSize = 24

// DecodeKey decodes base64 key material from configuration into a secretbox
// key.
func DecodeKey(encoded string) (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key material: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("key material must be %d bytes, got %d", KeySize, len(raw))
	}

	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}

// Encrypt seals plaintext under key and returns the base64 blob stored at
// rest: nonce followed by the sealed box.
func Encrypt(key *[KeySize]byte, plaintext []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64 blob produced by Encrypt.
func Decrypt(key *[KeySize]byte, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode blob: %w", err)
	}
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("blob too short: %d bytes", len(raw))
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("failed to open sealed blob")
	}
	return plaintext, nil
}
