package secrets

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := &[KeySize]byte{1, 2, 3}
	plaintext := []byte("-----BEGIN CERTIFICATE-----\nfixture\n-----END CERTIFICATE-----\n")

	sealed, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() returned error: %v", err)
	}

	opened, err := Decrypt(key, sealed)
	if err != nil {
		t.Fatalf("Decrypt() returned error: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Error("round trip did not preserve plaintext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key := &[KeySize]byte{1}
	other := &[KeySize]byte{2}

	sealed, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() returned error: %v", err)
	}
	if _, err := Decrypt(other, sealed); err == nil {
		t.Error("Decrypt() with the wrong key should fail")
	}
}

func TestDecryptMalformedBlob(t *testing.T) {
	key := &[KeySize]byte{1}

	if _, err := Decrypt(key, "not-base64!!"); err == nil {
		t.Error("Decrypt() of invalid base64 should fail")
	}

	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	if _, err := Decrypt(key, short); err == nil {
		t.Error("Decrypt() of a blob shorter than the nonce should fail")
	}
}

func TestDecodeKey(t *testing.T) {
	raw := make([]byte, KeySize)
	for i := range raw {
		raw[i] = byte(i)
	}

	key, err := DecodeKey(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("DecodeKey() returned error: %v", err)
	}
	if !bytes.Equal(key[:], raw) {
		t.Error("DecodeKey() did not preserve key material")
	}

	if _, err := DecodeKey("@@@"); err == nil {
		t.Error("DecodeKey() of invalid base64 should fail")
	}
	if _, err := DecodeKey(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("DecodeKey() of wrong-length material should fail")
	}
}
