package db_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// TestDBVaultEventAudit verifies vault operations leave audit events behind,
// and the behavior of `Database.ListVaultEvents` and
// `Database.RecordBackupEvent`.
func TestDBVaultEventAudit(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	// Create a unique temporary DB file for this test
	testDB := fmt.Sprintf("/tmp/coffre_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	// Create a new DB connection
	uut, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)

	// Create database tables
	assert.Nil(uut.RunSQLInTransaction(utCtx, db.DefineTables))

	utValidator := validator.New()
	assert.Nil(models.RegisterWithValidator(utValidator))

	// -------------------------------------------------------------------------
	// 1 – Run a sequence of vault operations
	var account models.Account
	var folder models.Folder
	var item models.Item
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		a, rootFolder, err := dbClient.RegisterAccount(
			ctx, fmt.Sprintf("%s@unit-test.org", uuid.NewString()), []byte(uuid.NewString()),
		)
		if err != nil {
			return err
		}
		account = a
		folder, err = dbClient.DefineNewFolder(ctx, account, uuid.NewString(), rootFolder.ID)
		if err != nil {
			return err
		}
		item, err = dbClient.DefineNewItem(ctx, account, db.NewItemParams{
			Name:        uuid.NewString(),
			Type:        models.ItemTypeText,
			EncContent:  []byte(uuid.NewString()),
			ContentHash: uuid.NewString(),
			FolderID:    folder.ID,
		})
		if err != nil {
			return err
		}
		return dbClient.RecordBackupEvent(
			ctx, models.VaultEventTypeExportBackup, account, 2, 1,
		)
	})
	assert.Nil(err)

	// 2 – The full event sequence is captured in order
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		events, err := dbClient.ListVaultEvents(ctx, db.VaultEventQueryFilter{
			TargetAccountID: &account.ID,
		})
		if err != nil {
			return err
		}
		assert.Len(events, 4)
		assert.Equal(models.VaultEventTypeRegisterAccount, events[0].EventType)
		assert.Equal(models.VaultEventTypeAddFolder, events[1].EventType)
		assert.Equal(models.VaultEventTypeAddItem, events[2].EventType)
		assert.Equal(models.VaultEventTypeExportBackup, events[3].EventType)
		return nil
	})
	assert.Nil(err)

	// 3 – Event type filters apply, and metadata parses back
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		events, err := dbClient.ListVaultEvents(ctx, db.VaultEventQueryFilter{
			TargetAccountID: &account.ID,
			EventTypes: []models.VaultEventTypeENUMType{
				models.VaultEventTypeAddItem, models.VaultEventTypeExportBackup,
			},
		})
		if err != nil {
			return err
		}
		assert.Len(events, 2)

		parsed, err := events[0].ParseMetadata(utValidator)
		if err != nil {
			return err
		}
		itemMeta, ok := parsed.(models.VaultEventItemRelated)
		assert.True(ok)
		assert.Equal(item.ID, itemMeta.ItemID)

		parsed, err = events[1].ParseMetadata(utValidator)
		if err != nil {
			return err
		}
		backupMeta, ok := parsed.(models.VaultEventBackupRelated)
		assert.True(ok)
		assert.Equal(2, backupMeta.FolderCount)
		assert.Equal(1, backupMeta.ItemCount)
		return nil
	})
	assert.Nil(err)
}
