// Package cryptox is the client-side codec that protects gift card redemption
// secrets before they are written to the ledger.
//
// Ciphertexts produced by Encrypt have the form
//
//	gv1:<base64url(salt | nonce | AES-256-GCM(json(payload)))>
//
// where the key is Argon2id(passphrase, salt). Decrypt also reads the OpenSSL
// "Salted__" envelopes written by the original web client (see legacy.go).
//
// Nothing here performs I/O apart from reading crypto/rand, and decryption never
// panics: every failure is reported as common.ErrDecryption.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	formatPrefix = "gv1:"

	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// ErrEmptyPassphrase is returned by Encrypt when no passphrase is supplied.
var ErrEmptyPassphrase = errors.New("passphrase must not be empty")

// DeriveKey stretches a passphrase into a 32-byte AES key with Argon2id.
// The same (passphrase, salt) pair always yields the same key.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

// Encrypt serializes payload to JSON and seals it under a key derived from
// passphrase. A fresh salt and nonce are drawn for every call, so encrypting the
// same payload twice yields different ciphertexts.
func Encrypt(payload any, passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrEmptyPassphrase
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializing payload: %w", err)
	}

	salt := common.GenerateRandByteArray(saltSize)
	nonce := common.GenerateRandByteArray(nonceSize)

	pass := []byte(passphrase)
	key := DeriveKey(pass, salt)
	defer common.WipeByteArray(key)
	defer common.WipeByteArray(pass)

	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	blob := make([]byte, 0, saltSize+nonceSize+len(plaintext)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, plaintext, nil)

	return formatPrefix + base64.RawURLEncoding.EncodeToString(blob), nil
}

// Open authenticates and decrypts ciphertext and returns the plaintext JSON.
// Any failure yields common.ErrDecryption.
func Open(ciphertext, passphrase string) (plaintext []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			plaintext, err = nil, common.ErrDecryption
		}
	}()

	if passphrase == "" || ciphertext == "" {
		return nil, common.ErrDecryption
	}

	switch {
	case strings.HasPrefix(ciphertext, formatPrefix):
		plaintext, err = openV1(strings.TrimPrefix(ciphertext, formatPrefix), passphrase)
	case strings.HasPrefix(ciphertext, legacyPrefix):
		plaintext, err = openLegacy(ciphertext, passphrase)
	default:
		return nil, common.ErrDecryption
	}
	if err != nil || !json.Valid(plaintext) {
		return nil, common.ErrDecryption
	}
	return plaintext, nil
}

// Decrypt opens ciphertext and unmarshals the JSON plaintext into v.
func Decrypt(ciphertext, passphrase string, v any) error {
	plaintext, err := Open(ciphertext, passphrase)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return common.ErrDecryption
	}
	return nil
}

func openV1(encoded, passphrase string) ([]byte, error) {
	blob, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(blob) < saltSize+nonceSize {
		return nil, common.ErrDecryption
	}

	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	sealed := blob[saltSize+nonceSize:]

	pass := []byte(passphrase)
	key := DeriveKey(pass, salt)
	defer common.WipeByteArray(key)
	defer common.WipeByteArray(pass)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
