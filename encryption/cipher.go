package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// KeyLen length in bytes of an account content key
	KeyLen = 32
	// NonceLen length in bytes of the per-operation nonce
	NonceLen = 16
	// TagLen length in bytes of the authentication tag
	TagLen = 16
)

// ErrDecryptionFailed the sealed blob did not verify: wrong key, truncated
// input, or tampered ciphertext. Decryption never returns partial plaintext.
var ErrDecryptionFailed = errors.New("decryption failed")

// newAEAD prepare the AES-256-GCM transform for one operation
func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("content key must be %d bytes, got %d", KeyLen, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("unable to define AES cipher [%w]", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceLen)
	if err != nil {
		return nil, fmt.Errorf("unable to define GCM transform [%w]", err)
	}

	return aead, nil
}

/*
Encrypt seal plain text under an account content key

The output is self-contained: a fresh random nonce and the authentication tag
are embedded ahead of the ciphertext (nonce, tag, ciphertext), so nothing but
the key is needed to decrypt later.

	@param plainText []byte - the plain text to seal
	@param key []byte - the account content key
	@return the sealed blob
*/
func Encrypt(plainText []byte, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	// A fresh unpredictable nonce per call. Never derived from the key.
	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce [%w]", err)
	}

	// Seal returns ciphertext followed by the tag; the wire layout wants the
	// tag ahead of the ciphertext
	sealed := aead.Seal(nil, nonce, plainText, nil)
	cipherText := sealed[:len(sealed)-TagLen]
	tag := sealed[len(sealed)-TagLen:]

	result := make([]byte, 0, NonceLen+TagLen+len(cipherText))
	result = append(result, nonce...)
	result = append(result, tag...)
	result = append(result, cipherText...)

	return result, nil
}

/*
Decrypt open a sealed blob produced by Encrypt

	@param sealed []byte - the sealed blob (nonce, tag, ciphertext)
	@param key []byte - the account content key
	@return the plain text
*/
func Decrypt(sealed []byte, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < NonceLen+TagLen {
		return nil, fmt.Errorf(
			"sealed blob of %d bytes is truncated [%w]", len(sealed), ErrDecryptionFailed,
		)
	}

	nonce := sealed[:NonceLen]
	tag := sealed[NonceLen : NonceLen+TagLen]
	cipherText := sealed[NonceLen+TagLen:]

	combined := make([]byte, 0, len(cipherText)+TagLen)
	combined = append(combined, cipherText...)
	combined = append(combined, tag...)

	plainText, err := aead.Open(nil, nonce, combined, nil)
	if err != nil {
		return nil, fmt.Errorf("sealed blob did not verify [%w]", ErrDecryptionFailed)
	}

	return plainText, nil
}

/*
ContentHash hash plain text content for no-op update detection

Computed where the plaintext is available, since comparing ciphertexts is
meaningless under a cipher that draws a fresh nonce per call.

	@param plainText []byte - the plain text content
	@return hex encoded content hash
*/
func ContentHash(plainText []byte) string {
	digest := sha256.Sum256(plainText)
	return hex.EncodeToString(digest[:])
}
