package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alwitt/coffre/models"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

// ======================================================================================
// Vault items

/*
DefineNewItem define new vault item

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@param params NewItemParams - the item attributes
	@returns item entry
*/
func (d *databaseImpl) DefineNewItem(
	_ context.Context, account models.Account, params NewItemParams,
) (models.Item, error) {
	if err := d.validator.Struct(&params); err != nil {
		return models.Item{}, fmt.Errorf("new item '%s' params are not valid [%w]", params.Name, err)
	}

	// The containing folder must belong to the same account
	folder, err := d.getFolderEntry(params.FolderID)
	if err != nil {
		return models.Item{}, fmt.Errorf("folder %s unknown [%w]", params.FolderID, err)
	}
	if folder.AccountID != account.ID {
		return models.Item{}, fmt.Errorf(
			"folder %s does not belong to account %s", params.FolderID, account.ID,
		)
	}

	newEntry := ItemDBEntry{
		Item: models.Item{
			ID:            uuid.NewString(),
			Name:          params.Name,
			Type:          params.Type,
			EncContent:    params.EncContent,
			FileEncrypted: params.FileEncrypted,
			ContentHash:   params.ContentHash,
			FolderID:      params.FolderID,
			AccountID:     account.ID,
			Pinned:        params.Pinned,
		},
	}

	if len(params.Tags) > 0 {
		tagsStr, _ := json.Marshal(params.Tags)
		newEntry.Tags = datatypes.JSON(tagsStr)
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Item{}, fmt.Errorf("new item '%s' is not valid [%w]", params.Name, err)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf("new item '%s' failed insert [%w]", params.Name, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		models.VaultEventTypeAddItem,
		account.ID,
		models.VaultEventItemRelated{ItemID: newEntry.ID, ItemName: params.Name},
	); err != nil {
		return models.Item{}, fmt.Errorf(
			"failed to log add new item '%s' audit event [%w]", params.Name, err,
		)
	}

	return newEntry.Item, nil
}

// getItemEntry find a vault item by ID
func (d *databaseImpl) getItemEntry(itemID string) (ItemDBEntry, error) {
	var entry ItemDBEntry
	err := d.db.Where("id = ?", itemID).First(&entry).Error
	return entry, err
}

/*
GetItem fetch an item by ID

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@returns item entry
*/
func (d *databaseImpl) GetItem(_ context.Context, itemID string) (models.Item, error) {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}
	return entry.Item, nil
}

/*
ListItems list the items of an account

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@param filters ItemQueryFilter - entry listing filter
	@return list of items
*/
func (d *databaseImpl) ListItems(
	_ context.Context, account models.Account, filters ItemQueryFilter,
) ([]models.Item, error) {
	query := d.db.Model(&ItemDBEntry{}).Where("account_id = ?", account.ID)

	if filters.TargetFolderID != nil {
		query = query.Where("folder_id = ?", *filters.TargetFolderID)
	}

	if len(filters.TargetTypes) > 0 {
		query = query.Where("type in ?", filters.TargetTypes)
	}

	if filters.PinnedOnly {
		query = query.Where("pinned = ?", true)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("created_at")

	var entries []ItemDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list items of account %s [%w]", account.ID, tmp.Error)
	}

	result := []models.Item{}
	for _, entry := range entries {
		result = append(result, entry.Item)
	}

	return result, nil
}

/*
UpdateItemContent replace an item's current encrypted content

	@param ctx context.Context - execution context
	@param item models.Item - the item to update
	@param encContent []byte - the new encrypted content
	@param contentHash string - hash of the new plaintext content
	@returns the updated item entry
*/
func (d *databaseImpl) UpdateItemContent(
	_ context.Context, item models.Item, encContent []byte, contentHash string,
) (models.Item, error) {
	entry, err := d.getItemEntry(item.ID)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to fetch item %s [%w]", item.ID, err)
	}

	entry.EncContent = encContent
	entry.ContentHash = contentHash
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Item{}, fmt.Errorf("item %s content update failed [%w]", item.ID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		models.VaultEventTypeUpdateItemContent,
		entry.AccountID,
		models.VaultEventItemRelated{ItemID: entry.ID, ItemName: entry.Name},
	); err != nil {
		return models.Item{}, fmt.Errorf(
			"failed to log update item '%s' audit event [%w]", entry.Name, err,
		)
	}

	return entry.Item, nil
}

/*
MarkItemPinned mark item is pinned

	@param ctx context.Context - execution context
	@param itemID string - item ID
*/
func (d *databaseImpl) MarkItemPinned(_ context.Context, itemID string) error {
	return d.updateItemPinned(itemID, true)
}

/*
MarkItemUnpinned mark item is not pinned

	@param ctx context.Context - execution context
	@param itemID string - item ID
*/
func (d *databaseImpl) MarkItemUnpinned(_ context.Context, itemID string) error {
	return d.updateItemPinned(itemID, false)
}

// updateItemPinned update an item's pin flag
func (d *databaseImpl) updateItemPinned(itemID string, pinned bool) error {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}

	if tmp := d.db.Model(&entry).Update("pinned", pinned); tmp.Error != nil {
		return fmt.Errorf("item %s pin flag update failed [%w]", itemID, tmp.Error)
	}

	return nil
}

/*
RecordItemAccess increment an item's access counter and stamp the
last-accessed timestamp

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param timestamp time.Time - the access timestamp
*/
func (d *databaseImpl) RecordItemAccess(
	_ context.Context, itemID string, timestamp time.Time,
) error {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}

	updates := map[string]interface{}{
		"access_count":     entry.AccessCount + 1,
		"last_accessed_at": timestamp,
	}
	if tmp := d.db.Model(&entry).Updates(updates); tmp.Error != nil {
		return fmt.Errorf("item %s access tracking update failed [%w]", itemID, tmp.Error)
	}

	return nil
}

/*
DeleteItem delete a vault item

	@param ctx context.Context - execution context
	@param itemID string - item ID
*/
func (d *databaseImpl) DeleteItem(_ context.Context, itemID string) error {
	entry, err := d.getItemEntry(itemID)
	if err != nil {
		return fmt.Errorf("failed to fetch item %s [%w]", itemID, err)
	}

	if tmp := d.db.Delete(&entry); tmp.Error != nil {
		return fmt.Errorf("failed to delete item %s [%w]", itemID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		models.VaultEventTypeDeleteItem,
		entry.AccountID,
		models.VaultEventItemRelated{ItemID: entry.ID, ItemName: entry.Name},
	); err != nil {
		return fmt.Errorf(
			"failed to log delete item '%s' audit event [%w]", entry.Name, err,
		)
	}

	return nil
}

// ======================================================================================
// Item content versions

/*
DefineNewVersionForItem define new item content version

The version number is assigned within this call: one more than the item's
current highest version number, starting at 1.

	@param ctx context.Context - execution context
	@param item models.Item - the parent item
	@param encContent []byte - the encrypted content of this version
	@param timestamp time.Time - the timestamp of the version
	@returns item version entry
*/
func (d *databaseImpl) DefineNewVersionForItem(
	_ context.Context, item models.Item, encContent []byte, timestamp time.Time,
) (models.ItemVersion, error) {
	// Assign the next version number for this item. Version numbers are
	// gapless and strictly increasing per item.
	var currentMax int64
	if tmp := d.db.Model(&ItemVersionDBEntry{}).
		Where("item_id = ?", item.ID).
		Select("coalesce(max(version_num), 0)").
		Scan(&currentMax); tmp.Error != nil {
		return models.ItemVersion{}, fmt.Errorf(
			"failed to find current max version of item %s [%w]", item.ID, tmp.Error,
		)
	}

	newEntry := ItemVersionDBEntry{
		ItemVersion: models.ItemVersion{
			ID:         ulid.Make().String(),
			ItemID:     item.ID,
			VersionNum: currentMax + 1,
			EncContent: encContent,
			CreatedAt:  timestamp,
			UpdatedAt:  timestamp,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.ItemVersion{}, fmt.Errorf(
			"new version for item %s is invalid [%w]", item.ID, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.ItemVersion{}, fmt.Errorf(
			"new version for item %s insert failed [%w]", item.ID, tmp.Error,
		)
	}

	return newEntry.ItemVersion, nil
}

/*
GetItemVersion fetch an item version by ID

	@param ctx context.Context - execution context
	@param versionID string - item version ID
	@returns item version entry
*/
func (d *databaseImpl) GetItemVersion(
	_ context.Context, versionID string,
) (models.ItemVersion, error) {
	var entry ItemVersionDBEntry
	if tmp := d.db.Where("id = ?", versionID).First(&entry); tmp.Error != nil {
		return models.ItemVersion{}, fmt.Errorf(
			"failed to fetch item version %s [%w]", versionID, tmp.Error,
		)
	}
	return entry.ItemVersion, nil
}

/*
ListVersionsOfOneItem list content versions of a specific item, descending by
version number

	@param ctx context.Context - execution context
	@param item models.Item - parent item
	@return list of item versions
*/
func (d *databaseImpl) ListVersionsOfOneItem(
	_ context.Context, item models.Item,
) ([]models.ItemVersion, error) {
	var entries []ItemVersionDBEntry
	if tmp := d.db.
		Where("item_id = ?", item.ID).
		Order("version_num desc").
		Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list versions of item %s [%w]", item.ID, tmp.Error)
	}

	result := []models.ItemVersion{}
	for _, entry := range entries {
		result = append(result, entry.ItemVersion)
	}

	return result, nil
}
