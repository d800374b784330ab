// Package cipherx encrypts and decrypts message bodies at rest.
//
// Stored ciphertexts have the form "hex(iv):hex(ciphertext)" using AES-256 in
// CBC mode with PKCS#7 padding and a fresh random IV per call. The delimiter
// lets Decrypt recover the IV without any out-of-band state.
package cipherx

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/venturelink/messenger/internal/common"
	"golang.org/x/crypto/argon2"
)

// KeySize is the required AES key length in bytes (AES-256).
const KeySize = 32

// DeriveKey stretches a configured passphrase and salt into a 256-bit AES key
// using argon2id. The same passphrase and salt always yield the same key, so
// ciphertexts stay readable across process restarts.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// Cipher performs symmetric encryption of message bodies. The key is
// process-wide configuration loaded once at startup.
type Cipher struct {
	key []byte
}

// New returns a Cipher for the given 32-byte key. A missing or wrongly sized
// key is a startup error, not something to paper over with a generated key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", common.ErrCipherKeyRequired, len(key), KeySize)
	}
	return &Cipher{key: key}, nil
}

// Encrypt returns the stored form of plaintext. Two calls with the same
// plaintext produce different outputs because the IV is random per call.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Any structural problem with the stored form
// (missing delimiter, bad hex, truncated IV, invalid padding) is reported as
// common.ErrMalformedCiphertext so callers can degrade gracefully.
func (c *Cipher) Decrypt(stored string) (string, error) {
	ivHex, ctHex, found := strings.Cut(stored, ":")
	if !found {
		return "", fmt.Errorf("%w: missing delimiter", common.ErrMalformedCiphertext)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: bad iv", common.ErrMalformedCiphertext)
	}

	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: bad ciphertext", common.ErrMalformedCiphertext)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad length", common.ErrMalformedCiphertext)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", common.ErrMalformedCiphertext)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", common.ErrMalformedCiphertext)
		}
	}
	return data[:len(data)-n], nil
}
