package encryption

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/models"
)

/*
GenerateAccountKey generate a new account content key

Called exactly once per account, at registration. The plaintext key is
returned for relay to the client; the wrapped form is what the caller
persists on the account record.

	@param ctx context.Context - execution context
	@returns the plaintext key and its wrapped form
*/
func (k *keyring) GenerateAccountKey(_ context.Context) ([]byte, []byte, error) {
	newKey := make([]byte, KeyLen)
	if n, err := rand.Read(newKey); err != nil {
		return nil, nil, fmt.Errorf("failed to read %d bytes from RNG [%w]", KeyLen, err)
	} else if n != KeyLen {
		return nil, nil, fmt.Errorf("did not get %d bytes from RNG, only %d", KeyLen, n)
	}

	// Wrap the key for storage
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, k.rsaPubKey, newKey, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to wrap account content key [%w]", err)
	}

	return newKey, wrapped, nil
}

// writeKeyToCache write key into cache for use. The cache keeps its own copy.
func (k *keyring) writeKeyToCache(accountID string, plainKey []byte) {
	cached := make([]byte, len(plainKey))
	copy(cached, plainKey)
	k.keyCacheLock.Lock()
	defer k.keyCacheLock.Unlock()
	k.accountKeys[accountID] = cached
}

// getCachedKey helper function to read a key from cache. The caller owns the
// returned slice; mutating it does not touch the cached key.
func (k *keyring) getCachedKey(accountID string) ([]byte, bool) {
	k.keyCacheLock.RLock()
	defer k.keyCacheLock.RUnlock()
	key, ok := k.accountKeys[accountID]
	if !ok {
		return nil, false
	}
	result := make([]byte, len(key))
	copy(result, key)
	return result, true
}

/*
GetAccountKey fetch the content key of an account

Unwraps the stored key material, caching the result. An account whose record
carries no key material is corrupt; that surfaces as an integrity error, not
a normal error path.

	@param ctx context.Context - execution context
	@param accountID string - the account ID
	@param activeDBClient Database - existing database transaction
	@return the plaintext content key
*/
func (k *keyring) GetAccountKey(
	ctx context.Context, accountID string, activeDBClient db.Database,
) ([]byte, error) {
	// Check key has been cached already
	if plainKey, cached := k.getCachedKey(accountID); cached {
		return plainKey, nil
	}

	var accountEntry models.Account
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, k.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			accountEntry, err = dbClient.GetAccount(dbCtx, accountID)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("account %s unknown [%w]", accountID, dbErr)
	}

	if len(accountEntry.EncKeyMaterial) == 0 {
		return nil, fmt.Errorf(
			"account %s carries no key material [%w]", accountID, models.ErrIntegrity,
		)
	}

	// Unwrap the key
	plainKey, err := rsa.DecryptOAEP(
		sha256.New(), rand.Reader, k.rsaKey, accountEntry.EncKeyMaterial, nil,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to unwrap content key of account %s [%w]", accountID, err,
		)
	}

	k.writeKeyToCache(accountID, plainKey)

	return plainKey, nil
}

/*
EvictAccountKey drop an account's key from the cache

	@param ctx context.Context - execution context
	@param accountID string - the account ID
*/
func (k *keyring) EvictAccountKey(_ context.Context, accountID string) {
	k.keyCacheLock.Lock()
	defer k.keyCacheLock.Unlock()
	delete(k.accountKeys, accountID)
}
