package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/recallcontext/backend/internal/apperr"
)

const (
	// KeyIterations is the PBKDF2-HMAC-SHA256 iteration count for credential keys.
	KeyIterations = 65536
	keyLength     = 32 // AES-256
	ivLength      = aes.BlockSize
	tagLength     = sha256.Size
)

var macLabel = []byte("recallcontext/credential-mac")

var (
	errShortCiphertext = errors.New("ciphertext too short")
	errBadTag          = errors.New("authentication tag mismatch")
	errBadPadding      = errors.New("invalid padding")
)

// CredentialCipher encrypts the stored API key with AES-256-CBC under a key derived
// from the master secret, using the identity as PBKDF2 salt. Ciphertexts carry an
// HMAC-SHA256 tag over iv||ciphertext so a wrong identity or corrupted input is rejected.
type CredentialCipher struct {
	masterSecret []byte
	random       io.Reader
}

// NewCredentialCipher creates a cipher bound to the process-wide master secret.
func NewCredentialCipher(masterSecret string) *CredentialCipher {
	return &CredentialCipher{masterSecret: []byte(masterSecret), random: rand.Reader}
}

// Encrypt returns base64 ciphertext and base64 IV. A fresh random IV is drawn on every call.
func (c *CredentialCipher) Encrypt(secret, identity string) (ciphertext, iv string, err error) {
	if identity == "" {
		return "", "", apperr.Crypto("failed to encrypt credential", errors.New("identity is required"))
	}
	encKey, macKey := c.deriveKeys(identity)

	ivBytes := make([]byte, ivLength)
	if _, err := io.ReadFull(c.random, ivBytes); err != nil {
		return "", "", apperr.Crypto("failed to encrypt credential", fmt.Errorf("generate iv: %w", err))
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", "", apperr.Crypto("failed to encrypt credential", err)
	}
	padded := pkcs7Pad([]byte(secret), aes.BlockSize)
	out := make([]byte, len(padded), len(padded)+tagLength)
	cipher.NewCBCEncrypter(block, ivBytes).CryptBlocks(out, padded)
	out = append(out, tag(macKey, ivBytes, out)...)

	return base64.StdEncoding.EncodeToString(out), base64.StdEncoding.EncodeToString(ivBytes), nil
}

// Decrypt reverses Encrypt. Any corruption, truncation or identity mismatch yields a CRYPTO_FAILURE error.
func (c *CredentialCipher) Decrypt(ciphertext, iv, identity string) (string, error) {
	fail := func(err error) (string, error) {
		return "", apperr.Crypto("failed to decrypt credential", err)
	}
	if identity == "" {
		return fail(errors.New("identity is required"))
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return fail(fmt.Errorf("decode ciphertext: %w", err))
	}
	ivBytes, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return fail(fmt.Errorf("decode iv: %w", err))
	}
	if len(ivBytes) != ivLength {
		return fail(fmt.Errorf("iv must be %d bytes", ivLength))
	}
	if len(data) < aes.BlockSize+tagLength || (len(data)-tagLength)%aes.BlockSize != 0 {
		return fail(errShortCiphertext)
	}

	encKey, macKey := c.deriveKeys(identity)
	body, got := data[:len(data)-tagLength], data[len(data)-tagLength:]
	if !hmac.Equal(got, tag(macKey, ivBytes, body)) {
		return fail(errBadTag)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return fail(err)
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, ivBytes).CryptBlocks(plain, body)
	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return fail(err)
	}
	return string(plain), nil
}

func (c *CredentialCipher) deriveKeys(identity string) (encKey, macKey []byte) {
	encKey = pbkdf2.Key(c.masterSecret, []byte(identity), KeyIterations, keyLength, sha256.New)
	m := hmac.New(sha256.New, encKey)
	m.Write(macLabel)
	return encKey, m.Sum(nil)
}

func tag(macKey, iv, body []byte) []byte {
	m := hmac.New(sha256.New, macKey)
	m.Write(iv)
	m.Write(body)
	return m.Sum(nil)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, errBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}
