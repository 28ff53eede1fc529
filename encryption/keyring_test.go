package encryption_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/encryption"
	"github.com/alwitt/coffre/models"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestAccountKeyLifecycle verifies the behavior of `Keyring.GenerateAccountKey`,
// `Keyring.GetAccountKey`, and `Keyring.EvictAccountKey`.
func TestAccountKeyLifecycle(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	// Create a unique temporary DB file for this test
	testDB := fmt.Sprintf("/tmp/coffre_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	// Create a new DB connection
	persistence, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)

	// Create database tables
	assert.Nil(persistence.RunSQLInTransaction(utCtx, db.DefineTables))

	testCertFile, testKeyFile := generateTestRSAFiles(t)
	uut, err := encryption.NewKeyring(utCtx, encryption.KeyringParams{
		Persistence:        persistence,
		PrimaryRSACertFile: testCertFile,
		PrimaryRSAKeyFile:  testKeyFile,
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 1 – Generate a content key; the wrapped form must differ from the
	// plaintext form
	plainKey, wrappedKey, err := uut.GenerateAccountKey(utCtx)
	assert.Nil(err)
	assert.Len(plainKey, encryption.KeyLen)
	assert.NotEqual(plainKey, wrappedKey)

	// Each call produces an independent key
	otherPlainKey, _, err := uut.GenerateAccountKey(utCtx)
	assert.Nil(err)
	assert.NotEqual(plainKey, otherPlainKey)

	// -------------------------------------------------------------------------
	// 2 – Register an account carrying the wrapped key
	var account models.Account
	err = persistence.UseDatabaseInTransaction(
		utCtx, func(ctx context.Context, dbClient db.Database) error {
			a, _, err := dbClient.RegisterAccount(
				ctx, fmt.Sprintf("%s@unit-test.org", uuid.NewString()), wrappedKey,
			)
			if err != nil {
				return err
			}
			account = a
			return nil
		},
	)
	assert.Nil(err)

	// 3 – Fetching the account key must return the original plaintext key
	fetchedKey, err := uut.GetAccountKey(utCtx, account.ID, nil)
	assert.Nil(err)
	assert.Equal(plainKey, fetchedKey)

	// 4 – Fetch again after eviction; the key is unwrapped from storage again
	uut.EvictAccountKey(utCtx, account.ID)
	fetchedKey, err = uut.GetAccountKey(utCtx, account.ID, nil)
	assert.Nil(err)
	assert.Equal(plainKey, fetchedKey)

	// -------------------------------------------------------------------------
	// 5 – Mutating a returned key must not corrupt the cached copy
	fetchedKey[0] ^= 0xff
	fetchedKey, err = uut.GetAccountKey(utCtx, account.ID, nil)
	assert.Nil(err)
	assert.Equal(plainKey, fetchedKey)

	// -------------------------------------------------------------------------
	// 6 – Unknown accounts fail
	_, err = uut.GetAccountKey(utCtx, uuid.NewString(), nil)
	assert.Error(err)

	// -------------------------------------------------------------------------
	// 7 – An account whose key material was lost surfaces an integrity error
	err = persistence.RunSQLInTransaction(
		utCtx, func(_ context.Context, tx *gorm.DB) error {
			return tx.Exec(
				"update accounts set enc_key_material = ? where id = ?", []byte{}, account.ID,
			).Error
		},
	)
	assert.Nil(err)

	uut.EvictAccountKey(utCtx, account.ID)
	_, err = uut.GetAccountKey(utCtx, account.ID, nil)
	assert.ErrorIs(err, models.ErrIntegrity)
}
