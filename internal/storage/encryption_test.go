package storage

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncryptionRoundTrip(t *testing.T) {
	for _, size := range []int{16, 24, 32} {
		encoded, err := GenerateKey(size)
		if err != nil {
			t.Fatalf("GenerateKey(%d) failed: %v", size, err)
		}

		enc, err := NewEncryptionFromBase64(encoded)
		if err != nil {
			t.Fatalf("NewEncryptionFromBase64 failed: %v", err)
		}

		apiKey := "sk-test-abcdefghijklmnop"
		ciphertext, err := enc.EncryptString(apiKey)
		if err != nil {
			t.Fatalf("EncryptString failed: %v", err)
		}
		if strings.Contains(ciphertext, apiKey) {
			t.Error("ciphertext contains plaintext")
		}

		plaintext, err := enc.DecryptString(ciphertext)
		if err != nil {
			t.Fatalf("DecryptString failed: %v", err)
		}
		if plaintext != apiKey {
			t.Errorf("Expected %q, got %q", apiKey, plaintext)
		}
	}
}

func TestEncryptionNonceUniqueness(t *testing.T) {
	key := make([]byte, 32)
	enc, err := NewEncryption(key)
	if err != nil {
		t.Fatalf("NewEncryption failed: %v", err)
	}

	a, _ := enc.EncryptString("same plaintext")
	b, _ := enc.EncryptString("same plaintext")
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestEncryptionInvalidKeySize(t *testing.T) {
	if _, err := NewEncryption(make([]byte, 15)); err == nil {
		t.Error("expected error for 15-byte key")
	}
	if _, err := NewEncryptionFromBase64(""); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewEncryptionFromBase64("not-base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	enc, _ := NewEncryption(make([]byte, 32))

	ciphertext, _ := enc.EncryptString("secret")
	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := enc.DecryptString(tampered); err == nil {
		t.Error("expected decryption of tampered ciphertext to fail")
	}

	if _, err := enc.DecryptString("dG9vc2hvcnQ="); err == nil {
		t.Error("expected error for truncated ciphertext")
	}
}
