package cipherx

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/venturelink/messenger/internal/common"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(DeriveKey([]byte("test-passphrase"), []byte("test-salt")))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return c
}

func TestDeriveKey_Deterministic(t *testing.T) {
	t.Parallel()

	key1 := DeriveKey([]byte("secret"), []byte("salt"))
	key2 := DeriveKey([]byte("secret"), []byte("salt"))

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same key for same inputs")
	}
	if len(key1) != KeySize {
		t.Errorf("expected %d-byte key, got %d", KeySize, len(key1))
	}

	key3 := DeriveKey([]byte("secret"), []byte("other-salt"))
	if bytes.Equal(key1, key3) {
		t.Errorf("expected different keys for different salts")
	}
}

func TestNew_RejectsBadKeySize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 16, 31, 33} {
		_, err := New(make([]byte, size))
		if !errors.Is(err, common.ErrCipherKeyRequired) {
			t.Fatalf("size %d: expected ErrCipherKeyRequired, got %v", size, err)
		}
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	c := testCipher(t)

	plaintexts := []string{
		"hello",
		"",
		"exactly sixteen!",
		"a longer message body with spaces, punctuation and ünïcode in it",
	}

	for _, p := range plaintexts {
		stored, err := c.Encrypt(p)
		if err != nil {
			t.Fatalf("Encrypt(%q) error: %v", p, err)
		}
		if !strings.Contains(stored, ":") {
			t.Fatalf("stored form missing delimiter: %q", stored)
		}
		if strings.Contains(stored, p) && p != "" {
			t.Fatalf("stored form contains plaintext: %q", stored)
		}

		got, err := c.Decrypt(stored)
		if err != nil {
			t.Fatalf("Decrypt error: %v", err)
		}
		if got != p {
			t.Fatalf("round trip mismatch: got %q want %q", got, p)
		}
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	t.Parallel()

	c := testCipher(t)

	first, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	second, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	if first == second {
		t.Fatalf("expected different ciphertexts for repeated encryption")
	}
}

func TestDecrypt_MalformedInput(t *testing.T) {
	t.Parallel()

	c := testCipher(t)

	inputs := []string{
		"",
		"no delimiter here",
		"zzzz:abcd",
		"aabb:zzzz",
		"aabbccdd:aabbccdd", // iv too short
		"000102030405060708090a0b0c0d0e0f:",
		"000102030405060708090a0b0c0d0e0f:aabb", // not block aligned
	}

	for _, in := range inputs {
		_, err := c.Decrypt(in)
		if !errors.Is(err, common.ErrMalformedCiphertext) {
			t.Fatalf("Decrypt(%q): expected ErrMalformedCiphertext, got %v", in, err)
		}
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	t.Parallel()

	c1 := testCipher(t)
	c2, err := New(DeriveKey([]byte("another-passphrase"), []byte("test-salt")))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	stored, err := c1.Encrypt("secret body")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}

	got, err := c2.Decrypt(stored)
	if err == nil && got == "secret body" {
		t.Fatalf("decryption with wrong key recovered the plaintext")
	}
}
