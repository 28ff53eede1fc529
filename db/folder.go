package db

import (
	"context"
	"fmt"

	"github.com/alwitt/coffre/models"
	"github.com/google/uuid"
)

/*
DefineNewFolder define new folder under a parent

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@param name string - folder name
	@param parentID string - the parent folder ID
	@returns folder entry
*/
func (d *databaseImpl) DefineNewFolder(
	_ context.Context, account models.Account, name string, parentID string,
) (models.Folder, error) {
	// The parent must already exist and belong to the same account. Folders
	// are only ever created under an existing parent, so the folder graph is
	// a tree by construction.
	parent, err := d.getFolderEntry(parentID)
	if err != nil {
		return models.Folder{}, fmt.Errorf("parent folder %s unknown [%w]", parentID, err)
	}
	if parent.AccountID != account.ID {
		return models.Folder{}, fmt.Errorf(
			"parent folder %s does not belong to account %s", parentID, account.ID,
		)
	}

	// Folder names are unique among siblings
	var siblings int64
	if tmp := d.db.Model(&FolderDBEntry{}).
		Where("account_id = ?", account.ID).
		Where("parent_id = ?", parentID).
		Where("name = ?", name).
		Count(&siblings); tmp.Error != nil {
		return models.Folder{}, fmt.Errorf(
			"sibling check for folder '%s' failed [%w]", name, tmp.Error,
		)
	}
	if siblings > 0 {
		return models.Folder{}, fmt.Errorf(
			"folder '%s' already exists under parent %s", name, parentID,
		)
	}

	newEntry := FolderDBEntry{
		Folder: models.Folder{
			ID:        uuid.NewString(),
			Name:      name,
			ParentID:  &parent.ID,
			AccountID: account.ID,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Folder{}, fmt.Errorf("new folder '%s' is not valid [%w]", name, err)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Folder{}, fmt.Errorf("new folder '%s' failed insert [%w]", name, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		models.VaultEventTypeAddFolder,
		account.ID,
		models.VaultEventFolderRelated{FolderID: newEntry.ID, FolderName: name},
	); err != nil {
		return models.Folder{}, fmt.Errorf(
			"failed to log add new folder '%s' audit event [%w]", name, err,
		)
	}

	return newEntry.Folder, nil
}

/*
RestoreRootFolder recreate the root folder of an account

Reserved for the backup import clear-existing path, which is the only flow
that removes the root folder.

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@returns the new root folder entry
*/
func (d *databaseImpl) RestoreRootFolder(
	_ context.Context, account models.Account,
) (models.Folder, error) {
	newEntry := FolderDBEntry{
		Folder: models.Folder{
			ID:        uuid.NewString(),
			Name:      models.RootFolderName,
			AccountID: account.ID,
		},
	}
	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Folder{}, fmt.Errorf(
			"root folder restore for account %s failed [%w]", account.ID, tmp.Error,
		)
	}
	return newEntry.Folder, nil
}

// getFolderEntry find a folder by ID
func (d *databaseImpl) getFolderEntry(folderID string) (FolderDBEntry, error) {
	var entry FolderDBEntry
	err := d.db.Where("id = ?", folderID).First(&entry).Error
	return entry, err
}

/*
GetFolder fetch a folder by ID

	@param ctx context.Context - execution context
	@param folderID string - folder ID
	@returns folder entry
*/
func (d *databaseImpl) GetFolder(
	_ context.Context, folderID string,
) (models.Folder, error) {
	entry, err := d.getFolderEntry(folderID)
	if err != nil {
		return models.Folder{}, fmt.Errorf("failed to fetch folder %s [%w]", folderID, err)
	}
	return entry.Folder, nil
}

/*
GetRootFolder fetch the root folder of an account

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@returns the root folder entry
*/
func (d *databaseImpl) GetRootFolder(
	_ context.Context, account models.Account,
) (models.Folder, error) {
	var entry FolderDBEntry
	if tmp := d.db.
		Where("account_id = ?", account.ID).
		Where("parent_id is null").
		Where("name = ?", models.RootFolderName).
		First(&entry); tmp.Error != nil {
		return models.Folder{}, fmt.Errorf(
			"failed to fetch root folder of account %s [%w]", account.ID, tmp.Error,
		)
	}
	return entry.Folder, nil
}

/*
ListFolders list the folders of an account in creation order

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@return list of folders
*/
func (d *databaseImpl) ListFolders(
	_ context.Context, account models.Account,
) ([]models.Folder, error) {
	var entries []FolderDBEntry
	if tmp := d.db.
		Where("account_id = ?", account.ID).
		Order("created_at").
		Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list folders of account %s [%w]", account.ID, tmp.Error)
	}

	result := []models.Folder{}
	for _, entry := range entries {
		result = append(result, entry.Folder)
	}

	return result, nil
}

/*
DeleteFolder delete a folder and, through cascade, its subtree

The root folder is always rejected.

	@param ctx context.Context - execution context
	@param folderID string - folder ID
*/
func (d *databaseImpl) DeleteFolder(_ context.Context, folderID string) error {
	entry, err := d.getFolderEntry(folderID)
	if err != nil {
		return fmt.Errorf("failed to fetch folder %s [%w]", folderID, err)
	}

	if entry.IsRoot() {
		return fmt.Errorf("refusing to delete folder %s [%w]", folderID, models.ErrRootFolderProtected)
	}

	if tmp := d.db.Delete(&entry); tmp.Error != nil {
		return fmt.Errorf("failed to delete folder %s [%w]", folderID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		models.VaultEventTypeDeleteFolder,
		entry.AccountID,
		models.VaultEventFolderRelated{FolderID: entry.ID, FolderName: entry.Name},
	); err != nil {
		return fmt.Errorf(
			"failed to log delete folder '%s' audit event [%w]", entry.Name, err,
		)
	}

	return nil
}

/*
DeleteAllAccountData delete every folder and item of an account

Reserved for the backup import clear-existing path; the root folder protection
does not apply since the caller replays a complete folder set immediately
after.

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
*/
func (d *databaseImpl) DeleteAllAccountData(_ context.Context, account models.Account) error {
	if tmp := d.db.
		Where("account_id = ?", account.ID).
		Delete(&ItemDBEntry{}); tmp.Error != nil {
		return fmt.Errorf("failed to delete items of account %s [%w]", account.ID, tmp.Error)
	}

	if tmp := d.db.
		Where("account_id = ?", account.ID).
		Delete(&FolderDBEntry{}); tmp.Error != nil {
		return fmt.Errorf("failed to delete folders of account %s [%w]", account.ID, tmp.Error)
	}

	return nil
}
