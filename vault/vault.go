// Package vault - personal vault storage controller
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/encryption"
	"github.com/alwitt/coffre/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
)

// ItemSpec attributes for creating a new vault item
type ItemSpec struct {
	// Name item name
	Name string
	// Type the item type
	Type models.ItemTypeENUMType
	// Content the plaintext content. Ignored for `file` items, whose payload
	// lives outside the vault tables.
	Content []byte
	// FileEncrypted whether the external file payload is encrypted at rest.
	// Only meaningful for `file` items.
	FileEncrypted bool
	// FolderID the containing folder
	FolderID string
	// Tags free-form tag set
	Tags []string
	// Pinned whether the item starts pinned
	Pinned bool
}

// PersonalVault per-account encrypted storage of folders and typed items
//
// Content is encrypted before it reaches persistence and decrypted only on
// the way out; the account content key is always an explicit parameter,
// never ambient state.
type PersonalVault interface {
	/*
		RegisterAccount register a new account

		Generates the account's content key and creates the account record and
		its root folder in one transaction. The returned plaintext key is for
		relay to the client; it is not recoverable later in plaintext form
		other than through `AccountKey`.

			@param ctx context.Context - execution context
			@param email string - account email
			@param activeDBClient Database - existing database transaction
			@returns the account and its plaintext content key
	*/
	RegisterAccount(
		ctx context.Context, email string, activeDBClient db.Database,
	) (models.Account, []byte, error)

	/*
		AccountKey fetch the content key of an account for server-side use

			@param ctx context.Context - execution context
			@param accountID string - the account ID
			@param activeDBClient Database - existing database transaction
			@return the plaintext content key
	*/
	AccountKey(
		ctx context.Context, accountID string, activeDBClient db.Database,
	) ([]byte, error)

	/*
		CreateFolder create a new folder under an existing parent

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@param name string - folder name
			@param parentID string - the parent folder ID
			@param activeDBClient Database - existing database transaction
			@returns the folder entry
	*/
	CreateFolder(
		ctx context.Context,
		account models.Account,
		name string,
		parentID string,
		activeDBClient db.Database,
	) (models.Folder, error)

	/*
		RootFolder fetch the root folder of an account

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@param activeDBClient Database - existing database transaction
			@returns the root folder entry
	*/
	RootFolder(
		ctx context.Context, account models.Account, activeDBClient db.Database,
	) (models.Folder, error)

	/*
		ListFolders list the folders of an account in creation order

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@param activeDBClient Database - existing database transaction
			@return list of folders
	*/
	ListFolders(
		ctx context.Context, account models.Account, activeDBClient db.Database,
	) ([]models.Folder, error)

	/*
		DeleteFolder delete a folder and its subtree

		The root folder is always rejected.

			@param ctx context.Context - execution context
			@param folderID string - folder ID
			@param activeDBClient Database - existing database transaction
	*/
	DeleteFolder(ctx context.Context, folderID string, activeDBClient db.Database) error

	/*
		CreateItem create a new vault item

		Non-file content is encrypted under the account key before insert, and
		version 1 of the item's content history is appended in the same
		transaction.

			@param ctx context.Context - execution context
			@param account models.Account - the owning account
			@param spec ItemSpec - the item attributes
			@param key []byte - the account content key
			@param activeDBClient Database - existing database transaction
			@returns the item entry
	*/
	CreateItem(
		ctx context.Context,
		account models.Account,
		spec ItemSpec,
		key []byte,
		activeDBClient db.Database,
	) (models.Item, error)

	/*
		UpdateItemContent replace an item's content

		A new content version is appended if and only if the content actually
		changed; the comparison uses plaintext hashes, since ciphertexts of
		equal plaintexts differ under per-call nonces.

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param plainText []byte - the new plaintext content
			@param key []byte - the account content key
			@param activeDBClient Database - existing database transaction
			@returns the updated item, and the new version entry if one was appended
	*/
	UpdateItemContent(
		ctx context.Context,
		itemID string,
		plainText []byte,
		key []byte,
		activeDBClient db.Database,
	) (models.Item, *models.ItemVersion, error)

	/*
		ItemContent fetch and decrypt an item's current content

		A successful read also records the access: the item's access counter
		is incremented and its last-accessed timestamp stamped. A read whose
		decryption fails records nothing.

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param key []byte - the account content key
			@param activeDBClient Database - existing database transaction
			@return decrypted item content
	*/
	ItemContent(
		ctx context.Context, itemID string, key []byte, activeDBClient db.Database,
	) ([]byte, error)

	/*
		ItemContentAtVersion fetch and decrypt an item's content at a
		particular version

			@param ctx context.Context - execution context
			@param versionID string - the version ID
			@param key []byte - the account content key
			@param activeDBClient Database - existing database transaction
			@return decrypted content of that version
	*/
	ItemContentAtVersion(
		ctx context.Context, versionID string, key []byte, activeDBClient db.Database,
	) ([]byte, error)

	/*
		ListItemVersions list an item's content versions, descending by
		version number

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param activeDBClient Database - existing database transaction
			@returns the item and its associated versions
	*/
	ListItemVersions(
		ctx context.Context, itemID string, activeDBClient db.Database,
	) (models.Item, []models.ItemVersion, error)

	/*
		PinItem mark an item pinned

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param activeDBClient Database - existing database transaction
	*/
	PinItem(ctx context.Context, itemID string, activeDBClient db.Database) error

	/*
		UnpinItem clear an item's pin flag

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param activeDBClient Database - existing database transaction
	*/
	UnpinItem(ctx context.Context, itemID string, activeDBClient db.Database) error

	/*
		DeleteItem delete a vault item and its version history

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param activeDBClient Database - existing database transaction
	*/
	DeleteItem(ctx context.Context, itemID string, activeDBClient db.Database) error
}

// personalVault implements PersonalVault
type personalVault struct {
	goutils.Component

	persistence db.Client

	keyring encryption.Keyring
}

/*
NewPersonalVault define new personal vault controller

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@param keyring encryption.Keyring - account keyring
	@returns vault instance
*/
func NewPersonalVault(
	_ context.Context, persistence db.Client, keyring encryption.Keyring,
) (PersonalVault, error) {
	logTags := log.Fields{"module": "vault", "component": "personal-vault"}

	instance := &personalVault{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence: persistence,
		keyring:     keyring,
	}

	return instance, nil
}

/*
RegisterAccount register a new account

	@param ctx context.Context - execution context
	@param email string - account email
	@param activeDBClient Database - existing database transaction
	@returns the account and its plaintext content key
*/
func (v *personalVault) RegisterAccount(
	ctx context.Context, email string, activeDBClient db.Database,
) (models.Account, []byte, error) {
	plainKey, wrappedKey, err := v.keyring.GenerateAccountKey(ctx)
	if err != nil {
		return models.Account{}, nil, fmt.Errorf(
			"failed to generate content key for '%s' [%w]", email, err,
		)
	}

	var accountEntry models.Account
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			accountEntry, _, err = dbClient.RegisterAccount(dbCtx, email, wrappedKey)
			return err
		},
	); dbErr != nil {
		return models.Account{}, nil, fmt.Errorf(
			"failed to register account '%s' [%w]", email, dbErr,
		)
	}

	return accountEntry, plainKey, nil
}

/*
AccountKey fetch the content key of an account for server-side use

	@param ctx context.Context - execution context
	@param accountID string - the account ID
	@param activeDBClient Database - existing database transaction
	@return the plaintext content key
*/
func (v *personalVault) AccountKey(
	ctx context.Context, accountID string, activeDBClient db.Database,
) ([]byte, error) {
	return v.keyring.GetAccountKey(ctx, accountID, activeDBClient)
}

/*
CreateFolder create a new folder under an existing parent

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@param name string - folder name
	@param parentID string - the parent folder ID
	@param activeDBClient Database - existing database transaction
	@returns the folder entry
*/
func (v *personalVault) CreateFolder(
	ctx context.Context,
	account models.Account,
	name string,
	parentID string,
	activeDBClient db.Database,
) (models.Folder, error) {
	var folderEntry models.Folder
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			folderEntry, err = dbClient.DefineNewFolder(dbCtx, account, name, parentID)
			return err
		},
	); dbErr != nil {
		return models.Folder{}, fmt.Errorf("failed to create folder '%s' [%w]", name, dbErr)
	}

	return folderEntry, nil
}

/*
RootFolder fetch the root folder of an account

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@param activeDBClient Database - existing database transaction
	@returns the root folder entry
*/
func (v *personalVault) RootFolder(
	ctx context.Context, account models.Account, activeDBClient db.Database,
) (models.Folder, error) {
	var folderEntry models.Folder
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			folderEntry, err = dbClient.GetRootFolder(dbCtx, account)
			return err
		},
	); dbErr != nil {
		return models.Folder{}, fmt.Errorf(
			"failed to fetch root folder of account %s [%w]", account.ID, dbErr,
		)
	}

	return folderEntry, nil
}

/*
ListFolders list the folders of an account in creation order

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@param activeDBClient Database - existing database transaction
	@return list of folders
*/
func (v *personalVault) ListFolders(
	ctx context.Context, account models.Account, activeDBClient db.Database,
) ([]models.Folder, error) {
	var folderEntries []models.Folder
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			folderEntries, err = dbClient.ListFolders(dbCtx, account)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list folders of account %s [%w]", account.ID, dbErr)
	}

	return folderEntries, nil
}

/*
DeleteFolder delete a folder and its subtree

	@param ctx context.Context - execution context
	@param folderID string - folder ID
	@param activeDBClient Database - existing database transaction
*/
func (v *personalVault) DeleteFolder(
	ctx context.Context, folderID string, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			return dbClient.DeleteFolder(dbCtx, folderID)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to delete folder %s [%w]", folderID, dbErr)
	}

	return nil
}

/*
CreateItem create a new vault item

	@param ctx context.Context - execution context
	@param account models.Account - the owning account
	@param spec ItemSpec - the item attributes
	@param key []byte - the account content key
	@param activeDBClient Database - existing database transaction
	@returns the item entry
*/
func (v *personalVault) CreateItem(
	ctx context.Context,
	account models.Account,
	spec ItemSpec,
	key []byte,
	activeDBClient db.Database,
) (models.Item, error) {
	params := db.NewItemParams{
		Name:     spec.Name,
		Type:     spec.Type,
		FolderID: spec.FolderID,
		Tags:     spec.Tags,
		Pinned:   spec.Pinned,
	}

	// File payloads live outside the vault tables; everything else is
	// encrypted before it reaches persistence
	if spec.Type == models.ItemTypeFile {
		params.FileEncrypted = spec.FileEncrypted
	} else {
		encContent, err := encryption.Encrypt(spec.Content, key)
		if err != nil {
			return models.Item{}, fmt.Errorf(
				"failed to encrypt content of item '%s' [%w]", spec.Name, err,
			)
		}
		params.EncContent = encContent
		params.ContentHash = encryption.ContentHash(spec.Content)
	}

	var itemEntry models.Item
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			itemEntry, err = dbClient.DefineNewItem(dbCtx, account, params)
			if err != nil {
				return fmt.Errorf("failed to insert new item [%w]", err)
			}

			if len(params.EncContent) > 0 {
				if _, err := dbClient.DefineNewVersionForItem(
					dbCtx, itemEntry, params.EncContent, itemEntry.CreatedAt,
				); err != nil {
					return fmt.Errorf("failed to insert initial item version [%w]", err)
				}
			}

			return nil
		},
	); dbErr != nil {
		return models.Item{}, fmt.Errorf("failed to create item '%s' [%w]", spec.Name, dbErr)
	}

	return itemEntry, nil
}

/*
UpdateItemContent replace an item's content

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param plainText []byte - the new plaintext content
	@param key []byte - the account content key
	@param activeDBClient Database - existing database transaction
	@returns the updated item, and the new version entry if one was appended
*/
func (v *personalVault) UpdateItemContent(
	ctx context.Context,
	itemID string,
	plainText []byte,
	key []byte,
	activeDBClient db.Database,
) (models.Item, *models.ItemVersion, error) {
	var itemEntry models.Item
	var versionEntry *models.ItemVersion

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error

			itemEntry, err = dbClient.GetItem(dbCtx, itemID)
			if err != nil {
				// Content can only be appended through an existing item
				return fmt.Errorf("item %s unknown [%w]: %w", itemID, models.ErrIntegrity, err)
			}

			// Identical content appends no version
			newHash := encryption.ContentHash(plainText)
			if itemEntry.ContentHash == newHash {
				return nil
			}

			encContent, err := encryption.Encrypt(plainText, key)
			if err != nil {
				return fmt.Errorf("failed to encrypt item content [%w]", err)
			}

			itemEntry, err = dbClient.UpdateItemContent(dbCtx, itemEntry, encContent, newHash)
			if err != nil {
				return fmt.Errorf("failed to update item content [%w]", err)
			}

			newVersion, err := dbClient.DefineNewVersionForItem(
				dbCtx, itemEntry, encContent, time.Now().UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert new item version [%w]", err)
			}
			versionEntry = &newVersion

			return nil
		},
	); dbErr != nil {
		return models.Item{}, nil, fmt.Errorf(
			"failed to update content of item %s [%w]", itemID, dbErr,
		)
	}

	return itemEntry, versionEntry, nil
}

/*
ItemContent fetch and decrypt an item's current content

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param key []byte - the account content key
	@param activeDBClient Database - existing database transaction
	@return decrypted item content
*/
func (v *personalVault) ItemContent(
	ctx context.Context, itemID string, key []byte, activeDBClient db.Database,
) ([]byte, error) {
	var itemEntry models.Item
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			itemEntry, err = dbClient.GetItem(dbCtx, itemID)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to find item %s [%w]", itemID, dbErr)
	}

	plainText, err := encryption.Decrypt(itemEntry.EncContent, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt content of item %s [%w]", itemID, err)
	}

	// Only a successful read counts as an access
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			return dbClient.RecordItemAccess(dbCtx, itemID, time.Now().UTC())
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to track access of item %s [%w]", itemID, dbErr)
	}

	return plainText, nil
}

/*
ItemContentAtVersion fetch and decrypt an item's content at a particular version

	@param ctx context.Context - execution context
	@param versionID string - the version ID
	@param key []byte - the account content key
	@param activeDBClient Database - existing database transaction
	@return decrypted content of that version
*/
func (v *personalVault) ItemContentAtVersion(
	ctx context.Context, versionID string, key []byte, activeDBClient db.Database,
) ([]byte, error) {
	var versionEntry models.ItemVersion
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			versionEntry, err = dbClient.GetItemVersion(dbCtx, versionID)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to find item version %s [%w]", versionID, dbErr)
	}

	plainText, err := encryption.Decrypt(versionEntry.EncContent, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt item version %s [%w]", versionID, err)
	}

	return plainText, nil
}

/*
ListItemVersions list an item's content versions, descending by version number

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param activeDBClient Database - existing database transaction
	@returns the item and its associated versions
*/
func (v *personalVault) ListItemVersions(
	ctx context.Context, itemID string, activeDBClient db.Database,
) (models.Item, []models.ItemVersion, error) {
	var itemEntry models.Item
	var versionEntries []models.ItemVersion

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error

			itemEntry, err = dbClient.GetItem(dbCtx, itemID)
			if err != nil {
				return fmt.Errorf("failed to find item %s [%w]", itemID, err)
			}

			versionEntries, err = dbClient.ListVersionsOfOneItem(dbCtx, itemEntry)
			if err != nil {
				return fmt.Errorf("failed to list item %s versions [%w]", itemID, err)
			}

			return nil
		},
	); dbErr != nil {
		return models.Item{}, nil, fmt.Errorf(
			"failed to list versions of item %s [%w]", itemID, dbErr,
		)
	}

	return itemEntry, versionEntries, nil
}

/*
PinItem mark an item pinned

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param activeDBClient Database - existing database transaction
*/
func (v *personalVault) PinItem(
	ctx context.Context, itemID string, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			return dbClient.MarkItemPinned(dbCtx, itemID)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to pin item %s [%w]", itemID, dbErr)
	}
	return nil
}

/*
UnpinItem clear an item's pin flag

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param activeDBClient Database - existing database transaction
*/
func (v *personalVault) UnpinItem(
	ctx context.Context, itemID string, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			return dbClient.MarkItemUnpinned(dbCtx, itemID)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to unpin item %s [%w]", itemID, dbErr)
	}
	return nil
}

/*
DeleteItem delete a vault item and its version history

	@param ctx context.Context - execution context
	@param itemID string - item ID
	@param activeDBClient Database - existing database transaction
*/
func (v *personalVault) DeleteItem(
	ctx context.Context, itemID string, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			return dbClient.DeleteItem(dbCtx, itemID)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to delete item %s [%w]", itemID, dbErr)
	}
	return nil
}
