package encryption_test

import (
	"crypto/rand"
	"testing"

	"github.com/alwitt/coffre/encryption"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestContentCipherRoundTrip verifies the behavior of `Encrypt` and `Decrypt`.
func TestContentCipherRoundTrip(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	key := make([]byte, encryption.KeyLen)
	_, err := rand.Read(key)
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 1 – Seal a payload and verify the blob layout
	plainText := []byte(uuid.NewString())
	sealed, err := encryption.Encrypt(plainText, key)
	assert.Nil(err)
	assert.Len(sealed, encryption.NonceLen+encryption.TagLen+len(plainText))
	assert.NotEqual(plainText, sealed[encryption.NonceLen+encryption.TagLen:])

	// 2 – Open the blob and verify the payload survived
	decrypted, err := encryption.Decrypt(sealed, key)
	assert.Nil(err)
	assert.Equal(plainText, decrypted)

	// -------------------------------------------------------------------------
	// 3 – Sealing the same payload again must give a different blob
	sealedAgain, err := encryption.Encrypt(plainText, key)
	assert.Nil(err)
	assert.NotEqual(sealed, sealedAgain)

	decrypted, err = encryption.Decrypt(sealedAgain, key)
	assert.Nil(err)
	assert.Equal(plainText, decrypted)

	// -------------------------------------------------------------------------
	// 4 – An empty payload also round trips
	sealedEmpty, err := encryption.Encrypt([]byte{}, key)
	assert.Nil(err)
	assert.Len(sealedEmpty, encryption.NonceLen+encryption.TagLen)

	decrypted, err = encryption.Decrypt(sealedEmpty, key)
	assert.Nil(err)
	assert.Empty(decrypted)
}

// TestContentCipherKeyHandling verifies `Encrypt` and `Decrypt` key checks.
func TestContentCipherKeyHandling(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	key := make([]byte, encryption.KeyLen)
	_, err := rand.Read(key)
	assert.Nil(err)

	plainText := []byte(uuid.NewString())

	// -------------------------------------------------------------------------
	// 1 – Keys of the wrong length are refused outright
	_, err = encryption.Encrypt(plainText, key[:16])
	assert.Error(err)
	_, err = encryption.Decrypt(plainText, []byte{})
	assert.Error(err)

	// -------------------------------------------------------------------------
	// 2 – A blob sealed under one key does not open under another
	sealed, err := encryption.Encrypt(plainText, key)
	assert.Nil(err)

	otherKey := make([]byte, encryption.KeyLen)
	_, err = rand.Read(otherKey)
	assert.Nil(err)

	_, err = encryption.Decrypt(sealed, otherKey)
	assert.ErrorIs(err, encryption.ErrDecryptionFailed)
}

// TestContentCipherTamperDetection verifies `Decrypt` rejects modified blobs.
func TestContentCipherTamperDetection(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	key := make([]byte, encryption.KeyLen)
	_, err := rand.Read(key)
	assert.Nil(err)

	plainText := []byte(uuid.NewString())
	sealed, err := encryption.Encrypt(plainText, key)
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 1 – A flip of any single byte, in the nonce, tag, or ciphertext, must
	// fail verification
	for idx := 0; idx < len(sealed); idx++ {
		tampered := make([]byte, len(sealed))
		copy(tampered, sealed)
		tampered[idx] ^= 0x01

		_, err := encryption.Decrypt(tampered, key)
		assert.ErrorIsf(err, encryption.ErrDecryptionFailed, "byte %d", idx)
	}

	// -------------------------------------------------------------------------
	// 2 – Truncated blobs are refused
	_, err = encryption.Decrypt(sealed[:encryption.NonceLen+encryption.TagLen-1], key)
	assert.ErrorIs(err, encryption.ErrDecryptionFailed)

	// 3 – The original still opens afterward
	decrypted, err := encryption.Decrypt(sealed, key)
	assert.Nil(err)
	assert.Equal(plainText, decrypted)
}

// TestContentHash verifies the behavior of `ContentHash`.
func TestContentHash(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	content := []byte(uuid.NewString())

	// Same plaintext hashes identically, different plaintext does not
	assert.Equal(encryption.ContentHash(content), encryption.ContentHash(content))
	assert.NotEqual(
		encryption.ContentHash(content), encryption.ContentHash([]byte(uuid.NewString())),
	)
	assert.Len(encryption.ContentHash(content), 64)
}
