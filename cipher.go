package soap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// Legacy envelope cipher.
//
// The partner derives the AES-256 key from a SHA-256 of the key text: the
// public certificate text when encrypting and the private key text when
// decrypting. Both sides must derive keys the same way, so this is kept as
// is. It is AES-CBC without an authentication tag: a wrong key or a
// tampered ciphertext decrypts to garbage instead of an error. Treat it as
// obfuscation, not as message security.

// BlockSize is the cipher block size and the IV length.
const BlockSize = aes.BlockSize

// DecodeError is returned when a ciphertext cannot be decoded or is
// structurally too short to decrypt.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "decode error: " + e.Reason + ": " + e.Err.Error()
	}
	return "decode error: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// LegacyEnvelopeCipher encrypts with a key derived from the public
// certificate text and decrypts with a key derived from the private key text.
type LegacyEnvelopeCipher struct {
	keys *KeyMaterial
	rand io.Reader
}

// NewLegacyEnvelopeCipher returns a cipher bound to keys.
func NewLegacyEnvelopeCipher(keys *KeyMaterial) *LegacyEnvelopeCipher {
	return &LegacyEnvelopeCipher{keys: keys, rand: rand.Reader}
}

// Encrypt encrypts plaintext under the public material and returns base64(IV || ciphertext).
func (c *LegacyEnvelopeCipher) Encrypt(plaintext []byte) (string, error) {
	if c.keys == nil || c.keys.PublicCert == "" {
		return "", ErrKeyMaterialUnavailable
	}
	return encryptWithKey(plaintext, c.keys.PublicCert, c.rand)
}

// Decrypt reverses Encrypt using the private material.
func (c *LegacyEnvelopeCipher) Decrypt(ciphertext string) ([]byte, error) {
	if c.keys == nil || c.keys.PrivateKey == "" {
		return nil, ErrKeyMaterialUnavailable
	}
	return DecryptWithKey(ciphertext, c.keys.PrivateKey)
}

// DeriveKey returns the SHA-256 digest of the key text.
func DeriveKey(keyText string) []byte {
	sum := sha256.Sum256([]byte(keyText))
	return sum[:]
}

// EncryptWithKey encrypts plaintext with a key derived from keyText.
func EncryptWithKey(plaintext []byte, keyText string) (string, error) {
	return encryptWithKey(plaintext, keyText, rand.Reader)
}

func encryptWithKey(plaintext []byte, keyText string, r io.Reader) (string, error) {
	block, err := aes.NewCipher(DeriveKey(keyText))
	if err != nil {
		return "", err
	}

	padded := pad(plaintext)
	out := make([]byte, BlockSize+len(padded))
	iv := out[:BlockSize]
	if _, err := io.ReadFull(r, iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptWithKey decrypts base64(IV || ciphertext) with a key derived from keyText.
func DecryptWithKey(ciphertext string, keyText string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64", Err: err}
	}
	if len(raw) < BlockSize {
		return nil, &DecodeError{Reason: fmt.Sprintf("ciphertext shorter than one %d-byte block", BlockSize)}
	}
	body := raw[BlockSize:]
	if len(body) == 0 || len(body)%BlockSize != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("ciphertext length %d is not a positive multiple of %d", len(body), BlockSize)}
	}

	block, err := aes.NewCipher(DeriveKey(keyText))
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, raw[:BlockSize]).CryptBlocks(plain, body)

	return unpad(plain), nil
}

func pad(b []byte) []byte {
	n := BlockSize - len(b)%BlockSize
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

// unpad trusts the final byte as the pad length. Out-of-range values
// truncate to empty rather than fail, matching the partner.
func unpad(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	n := int(b[len(b)-1])
	if n == 0 || n > len(b) {
		return b[:0]
	}
	return b[:len(b)-n]
}
