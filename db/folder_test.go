package db_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/models"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// TestDBFolderManagement verifies the behavior of `Database.DefineNewFolder`,
// `Database.GetFolder`, `Database.GetRootFolder`, and `Database.ListFolders`.
func TestDBFolderManagement(t *testing.T) {
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

	// Register a test account
	var account models.Account
	var rootFolder models.Folder
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		a, f, err := dbClient.RegisterAccount(
			ctx, fmt.Sprintf("%s@unit-test.org", uuid.NewString()), []byte(uuid.NewString()),
		)
		if err != nil {
			return err
		}
		account = a
		rootFolder = f
		return nil
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 1 – The root folder is directly addressable
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		f, err := dbClient.GetRootFolder(ctx, account)
		if err != nil {
			return err
		}
		assert.Equal(rootFolder.ID, f.ID)
		return nil
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 2 – Define a folder under root, and one nested below it
	var folder1, folder2 models.Folder
	folder1Name := uuid.NewString()
	folder2Name := uuid.NewString()
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		f1, err := dbClient.DefineNewFolder(ctx, account, folder1Name, rootFolder.ID)
		if err != nil {
			return err
		}
		folder1 = f1
		f2, err := dbClient.DefineNewFolder(ctx, account, folder2Name, f1.ID)
		if err != nil {
			return err
		}
		folder2 = f2
		return nil
	})
	assert.Nil(err)
	assert.Equal(rootFolder.ID, *folder1.ParentID)
	assert.Equal(folder1.ID, *folder2.ParentID)

	// 3 – Get back the folders and list them in creation order
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		f, err := dbClient.GetFolder(ctx, folder2.ID)
		if err != nil {
			return err
		}
		assert.Equal(folder2Name, f.Name)

		folders, err := dbClient.ListFolders(ctx, account)
		if err != nil {
			return err
		}
		assert.Len(folders, 3)
		assert.Equal(rootFolder.ID, folders[0].ID)
		assert.Equal(folder1.ID, folders[1].ID)
		assert.Equal(folder2.ID, folders[2].ID)
		return nil
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 4 – Folder names must be unique among siblings
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.DefineNewFolder(ctx, account, folder1Name, rootFolder.ID)
		return err
	})
	assert.Error(err)

	// 5 – But the same name is fine under a different parent
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.DefineNewFolder(ctx, account, folder1Name, folder2.ID)
		return err
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 6 – Folders under unknown parents fail
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.DefineNewFolder(ctx, account, uuid.NewString(), uuid.NewString())
		return err
	})
	assert.Error(err)

	// 7 – Folders under a parent of a different account fail
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		otherAccount, _, err := dbClient.RegisterAccount(
			ctx, fmt.Sprintf("%s@unit-test.org", uuid.NewString()), []byte(uuid.NewString()),
		)
		if err != nil {
			return err
		}
		_, err = dbClient.DefineNewFolder(ctx, otherAccount, uuid.NewString(), rootFolder.ID)
		return err
	})
	assert.Error(err)
}

// TestDBFolderDelete verifies the behavior of `Database.DeleteFolder`,
// `Database.DeleteAllAccountData`, and `Database.RestoreRootFolder`.
func TestDBFolderDelete(t *testing.T) {
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

	// Register a test account with a small folder tree
	var account models.Account
	var rootFolder, folder1, folder2 models.Folder
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		a, f, err := dbClient.RegisterAccount(
			ctx, fmt.Sprintf("%s@unit-test.org", uuid.NewString()), []byte(uuid.NewString()),
		)
		if err != nil {
			return err
		}
		account = a
		rootFolder = f
		folder1, err = dbClient.DefineNewFolder(ctx, account, uuid.NewString(), rootFolder.ID)
		if err != nil {
			return err
		}
		folder2, err = dbClient.DefineNewFolder(ctx, account, uuid.NewString(), folder1.ID)
		if err != nil {
			return err
		}
		_, err = dbClient.DefineNewItem(ctx, account, db.NewItemParams{
			Name:        uuid.NewString(),
			Type:        models.ItemTypeText,
			EncContent:  []byte(uuid.NewString()),
			ContentHash: uuid.NewString(),
			FolderID:    folder2.ID,
		})
		return err
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 1 – The root folder can not be deleted
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		return dbClient.DeleteFolder(ctx, rootFolder.ID)
	})
	assert.ErrorIs(err, models.ErrRootFolderProtected)

	// -------------------------------------------------------------------------
	// 2 – Deleting a folder removes its subtree and contained items
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		return dbClient.DeleteFolder(ctx, folder1.ID)
	})
	assert.Nil(err)
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		folders, err := dbClient.ListFolders(ctx, account)
		if err != nil {
			return err
		}
		assert.Len(folders, 1)
		assert.Equal(rootFolder.ID, folders[0].ID)

		items, err := dbClient.ListItems(ctx, account, db.ItemQueryFilter{})
		if err != nil {
			return err
		}
		assert.Empty(items)
		return nil
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 3 – Clearing the account removes everything, root folder included, and
	// the root folder can then be restored
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		if err := dbClient.DeleteAllAccountData(ctx, account); err != nil {
			return err
		}
		folders, err := dbClient.ListFolders(ctx, account)
		if err != nil {
			return err
		}
		assert.Empty(folders)

		newRoot, err := dbClient.RestoreRootFolder(ctx, account)
		if err != nil {
			return err
		}
		assert.True(newRoot.IsRoot())
		assert.NotEqual(rootFolder.ID, newRoot.ID)
		return nil
	})
	assert.Nil(err)
}
