package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/coffre/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CommonListEntryQueryFilter common query filter when listing data entries
type CommonListEntryQueryFilter struct {
	Limit  *int
	Offset *int
}

// VaultEventQueryFilter audit event query filter conditions
type VaultEventQueryFilter struct {
	CommonListEntryQueryFilter
	// EventTypes the specific event types to query for
	EventTypes []models.VaultEventTypeENUMType
	// TargetAccountID filter for events of this account
	TargetAccountID *string
	// EventsAfter filter for events after this timestamp
	EventsAfter *time.Time
	// EventsBefore filter for events before this timestamp
	EventsBefore *time.Time
}

// ItemQueryFilter vault item query filter conditions
type ItemQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetFolderID fetch only items within this folder
	TargetFolderID *string
	// TargetTypes the specific item types to query for
	TargetTypes []models.ItemTypeENUMType
	// PinnedOnly fetch only pinned items
	PinnedOnly bool
}

// Database the database handle to interacting with the data base
type Database interface {
	// ------------------------------------------------------------------------------------
	// Vault audit events

	/*
		ListVaultEvents list captured vault events

			@param ctx context.Context - execution context
			@param filters VaultEventQueryFilter - entry listing filter
			@return list of vault events
	*/
	ListVaultEvents(
		ctx context.Context, filters VaultEventQueryFilter,
	) ([]models.VaultEventAudit, error)

	/*
		RecordBackupEvent record a backup related vault event

			@param ctx context.Context - execution context
			@param eventType models.VaultEventTypeENUMType - the backup event type
			@param account models.Account - the associated account
			@param folderCount int - number of folders covered by the event
			@param itemCount int - number of items covered by the event
	*/
	RecordBackupEvent(
		ctx context.Context,
		eventType models.VaultEventTypeENUMType,
		account models.Account,
		folderCount int,
		itemCount int,
	) error

	// ------------------------------------------------------------------------------------
	// Accounts

	/*
		RegisterAccount record a new user account along with its root folder

			@param ctx context.Context - execution context
			@param email string - account email
			@param encKeyMaterial []byte - wrapped per-account symmetric key
			@returns the account entry and its root folder
	*/
	RegisterAccount(
		ctx context.Context, email string, encKeyMaterial []byte,
	) (models.Account, models.Folder, error)

	/*
		GetAccount fetch an account by ID

			@param ctx context.Context - execution context
			@param accountID string - account ID
			@returns account entry
	*/
	GetAccount(ctx context.Context, accountID string) (models.Account, error)

	/*
		GetAccountByEmail fetch an account by email

			@param ctx context.Context - execution context
			@param email string - account email
			@returns account entry
	*/
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)

	/*
		MarkAccountLocked mark account is locked

			@param ctx context.Context - execution context
			@param accountID string - account ID
	*/
	MarkAccountLocked(ctx context.Context, accountID string) error

	/*
		MarkAccountActive mark account is active

			@param ctx context.Context - execution context
			@param accountID string - account ID
	*/
	MarkAccountActive(ctx context.Context, accountID string) error

	// ------------------------------------------------------------------------------------
	// Folders

	/*
		DefineNewFolder define new folder under a parent

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@param name string - folder name
			@param parentID string - the parent folder ID
			@returns folder entry
	*/
	DefineNewFolder(
		ctx context.Context, account models.Account, name string, parentID string,
	) (models.Folder, error)

	/*
		GetFolder fetch a folder by ID

			@param ctx context.Context - execution context
			@param folderID string - folder ID
			@returns folder entry
	*/
	GetFolder(ctx context.Context, folderID string) (models.Folder, error)

	/*
		GetRootFolder fetch the root folder of an account

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@returns the root folder entry
	*/
	GetRootFolder(ctx context.Context, account models.Account) (models.Folder, error)

	/*
		RestoreRootFolder recreate the root folder of an account

		Reserved for the backup import clear-existing path, which is the only
		flow that removes the root folder.

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@returns the new root folder entry
	*/
	RestoreRootFolder(ctx context.Context, account models.Account) (models.Folder, error)

	/*
		ListFolders list the folders of an account in creation order

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@return list of folders
	*/
	ListFolders(ctx context.Context, account models.Account) ([]models.Folder, error)

	/*
		DeleteFolder delete a folder and, through cascade, its subtree

		The root folder is always rejected.

			@param ctx context.Context - execution context
			@param folderID string - folder ID
	*/
	DeleteFolder(ctx context.Context, folderID string) error

	/*
		DeleteAllAccountData delete every folder and item of an account

		Reserved for the backup import clear-existing path; the root folder
		protection does not apply since the caller replays a complete folder
		set immediately after.

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
	*/
	DeleteAllAccountData(ctx context.Context, account models.Account) error

	// ------------------------------------------------------------------------------------
	// Items

	/*
		DefineNewItem define new vault item

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@param params NewItemParams - the item attributes
			@returns item entry
	*/
	DefineNewItem(
		ctx context.Context, account models.Account, params NewItemParams,
	) (models.Item, error)

	/*
		GetItem fetch an item by ID

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@returns item entry
	*/
	GetItem(ctx context.Context, itemID string) (models.Item, error)

	/*
		ListItems list the items of an account

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@param filters ItemQueryFilter - entry listing filter
			@return list of items
	*/
	ListItems(
		ctx context.Context, account models.Account, filters ItemQueryFilter,
	) ([]models.Item, error)

	/*
		UpdateItemContent replace an item's current encrypted content

			@param ctx context.Context - execution context
			@param item models.Item - the item to update
			@param encContent []byte - the new encrypted content
			@param contentHash string - hash of the new plaintext content
			@returns the updated item entry
	*/
	UpdateItemContent(
		ctx context.Context, item models.Item, encContent []byte, contentHash string,
	) (models.Item, error)

	/*
		MarkItemPinned mark item is pinned

			@param ctx context.Context - execution context
			@param itemID string - item ID
	*/
	MarkItemPinned(ctx context.Context, itemID string) error

	/*
		MarkItemUnpinned mark item is not pinned

			@param ctx context.Context - execution context
			@param itemID string - item ID
	*/
	MarkItemUnpinned(ctx context.Context, itemID string) error

	/*
		RecordItemAccess increment an item's access counter and stamp the
		last-accessed timestamp

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param timestamp time.Time - the access timestamp
	*/
	RecordItemAccess(ctx context.Context, itemID string, timestamp time.Time) error

	/*
		DeleteItem delete a vault item

			@param ctx context.Context - execution context
			@param itemID string - item ID
	*/
	DeleteItem(ctx context.Context, itemID string) error

	// ------------------------------------------------------------------------------------
	// Item content versions

	/*
		DefineNewVersionForItem define new item content version

		The version number is assigned within this call: one more than the
		item's current highest version number, starting at 1.

			@param ctx context.Context - execution context
			@param item models.Item - the parent item
			@param encContent []byte - the encrypted content of this version
			@param timestamp time.Time - the timestamp of the version
			@returns item version entry
	*/
	DefineNewVersionForItem(
		ctx context.Context, item models.Item, encContent []byte, timestamp time.Time,
	) (models.ItemVersion, error)

	/*
		GetItemVersion fetch an item version by ID

			@param ctx context.Context - execution context
			@param versionID string - item version ID
			@returns item version entry
	*/
	GetItemVersion(ctx context.Context, versionID string) (models.ItemVersion, error)

	/*
		ListVersionsOfOneItem list content versions of a specific item,
		descending by version number

			@param ctx context.Context - execution context
			@param item models.Item - parent item
			@return list of item versions
	*/
	ListVersionsOfOneItem(ctx context.Context, item models.Item) ([]models.ItemVersion, error)
}

// NewItemParams attributes for defining a new vault item
type NewItemParams struct {
	// Name item name
	Name string `validate:"required"`
	// Type the item type
	Type models.ItemTypeENUMType `validate:"required,item_type"`
	// EncContent the encrypted item content. Empty for `file` items.
	EncContent []byte
	// FileEncrypted whether the external file payload is encrypted at rest
	FileEncrypted bool
	// ContentHash hash of the plaintext content
	ContentHash string
	// FolderID the containing folder
	FolderID string `validate:"required,uuid_rfc4122"`
	// Tags free-form tag set
	Tags []string
	// Pinned whether the item starts pinned
	Pinned bool
}

// databaseImpl implements Database
type databaseImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

// newDatabase define a new database client
func newDatabase(_ context.Context, sqlClient *gorm.DB) (Database, error) {
	logTags := log.Fields{"package": "coffre", "module": "db", "component": "db-client"}

	instance := &databaseImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        sqlClient,
		validator: validator.New(),
	}

	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	return instance, nil
}
