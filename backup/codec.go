// Package backup - account backup bundle export and import
package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/encryption"
	"github.com/alwitt/coffre/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
)

// ErrMalformedBundle returned when a backup bundle decrypts correctly but its
// payload does not parse as a valid snapshot, or when the envelope itself is
// not usable
var ErrMalformedBundle = errors.New("malformed backup bundle")

// ImportSummary counts of what a bundle import actually restored
type ImportSummary struct {
	// FoldersImported number of folders created during the import
	FoldersImported int `json:"folders_imported"`
	// ItemsImported number of items created during the import
	ItemsImported int `json:"items_imported"`
}

// Codec serialize a complete account into a portable encrypted bundle and
// restore one back into an account
type Codec interface {
	/*
		Export export an account's complete folder and item set as one
		encrypted bundle

		The snapshot is read in a single transaction, serialized to JSON, and
		sealed as one blob under the provided key. File item payloads are not
		included; a placeholder marker takes their place.

			@param ctx context.Context - execution context
			@param account models.Account - the account to export
			@param key []byte - the account content key
			@param activeDBClient Database - existing database transaction
			@returns the backup bundle
	*/
	Export(
		ctx context.Context, account models.Account, key []byte, activeDBClient db.Database,
	) (models.BackupBundle, error)

	/*
		Import restore a backup bundle into an account

		The bundle is first gated on its envelope and decrypted; a bundle
		which decrypts but does not parse fails with ErrMalformedBundle, and
		one sealed under a different key fails with
		encryption.ErrDecryptionFailed. The restore itself runs in one
		transaction: folder entries are replayed with fresh IDs (parent
		references resolve independent of bundle ordering), then item entries
		are replayed into the remapped folders. File items and items whose
		folder could not be restored are skipped.

			@param ctx context.Context - execution context
			@param account models.Account - the destination account
			@param bundle models.BackupBundle - the bundle to restore
			@param key []byte - the key the bundle was sealed under
			@param clearExisting bool - when true, the account's existing
			    folders and items are removed before the restore
			@param activeDBClient Database - existing database transaction
			@returns counts of restored folders and items
	*/
	Import(
		ctx context.Context,
		account models.Account,
		bundle models.BackupBundle,
		key []byte,
		clearExisting bool,
		activeDBClient db.Database,
	) (ImportSummary, error)
}

// codecImpl implements Codec
type codecImpl struct {
	goutils.Component

	persistence db.Client

	// Per-account serialization of export and import. Concurrent restores
	// into one account would interleave folder replays. Entries are never
	// evicted; the map holds one mutex per account ever exported or imported
	// through this codec instance.
	accountLocksMutex *sync.Mutex
	accountLocks      map[string]*sync.Mutex
}

/*
NewCodec define new backup bundle codec

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@returns codec instance
*/
func NewCodec(_ context.Context, persistence db.Client) (Codec, error) {
	logTags := log.Fields{"module": "backup", "component": "bundle-codec"}

	instance := &codecImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence:       persistence,
		accountLocksMutex: &sync.Mutex{},
		accountLocks:      make(map[string]*sync.Mutex),
	}

	return instance, nil
}

// accountLock fetch the serialization lock of one account
func (c *codecImpl) accountLock(accountID string) *sync.Mutex {
	c.accountLocksMutex.Lock()
	defer c.accountLocksMutex.Unlock()

	if lock, ok := c.accountLocks[accountID]; ok {
		return lock
	}

	lock := &sync.Mutex{}
	c.accountLocks[accountID] = lock
	return lock
}

/*
Export export an account's complete folder and item set as one encrypted bundle

	@param ctx context.Context - execution context
	@param account models.Account - the account to export
	@param key []byte - the account content key
	@param activeDBClient Database - existing database transaction
	@returns the backup bundle
*/
func (c *codecImpl) Export(
	ctx context.Context, account models.Account, key []byte, activeDBClient db.Database,
) (models.BackupBundle, error) {
	logTags := c.GetLogTagsForContext(ctx)

	lock := c.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	var folderEntries []models.Folder
	var itemEntries []models.Item

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, c.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error

			folderEntries, err = dbClient.ListFolders(dbCtx, account)
			if err != nil {
				return fmt.Errorf("failed to read folders [%w]", err)
			}

			itemEntries, err = dbClient.ListItems(dbCtx, account, db.ItemQueryFilter{})
			if err != nil {
				return fmt.Errorf("failed to read items [%w]", err)
			}

			return dbClient.RecordBackupEvent(
				dbCtx,
				models.VaultEventTypeExportBackup,
				account,
				len(folderEntries),
				len(itemEntries),
			)
		},
	); dbErr != nil {
		return models.BackupBundle{}, fmt.Errorf(
			"failed to snapshot account %s [%w]", account.ID, dbErr,
		)
	}

	snapshot := models.BundleSnapshot{
		Version:   models.BackupBundleFormatVersion,
		Timestamp: time.Now().UTC(),
		User:      models.BundleUser{Email: account.Email},
		Folders:   []models.BundleFolder{},
		Items:     []models.BundleItem{},
	}

	for _, folder := range folderEntries {
		snapshot.Folders = append(snapshot.Folders, models.BundleFolder{
			ID: folder.ID, Name: folder.Name, ParentID: folder.ParentID,
		})
	}

	for _, item := range itemEntries {
		bundleItem := models.BundleItem{
			ID:       item.ID,
			Name:     item.Name,
			Type:     item.Type,
			FolderID: item.FolderID,
			Tags:     item.Tags,
			Pinned:   item.Pinned,
		}
		if item.Type == models.ItemTypeFile {
			// File payloads are not portable through a bundle
			bundleItem.FileData = models.BackupFileContentSentinel
		} else {
			bundleItem.EncContent = item.EncContent
			bundleItem.ContentHash = item.ContentHash
		}
		snapshot.Items = append(snapshot.Items, bundleItem)
	}

	plainText, err := json.Marshal(&snapshot)
	if err != nil {
		return models.BackupBundle{}, fmt.Errorf("failed to serialize snapshot [%w]", err)
	}

	sealed, err := encryption.Encrypt(plainText, key)
	if err != nil {
		return models.BackupBundle{}, fmt.Errorf("failed to seal snapshot [%w]", err)
	}

	log.WithFields(logTags).
		WithField("account", account.ID).
		WithField("folders", len(folderEntries)).
		WithField("items", len(itemEntries)).
		Info("Exported account backup bundle")

	return models.BackupBundle{
		Version:   models.BackupBundleFormatVersion,
		Encrypted: true,
		Data:      base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// openBundle decrypt and parse a backup bundle into a snapshot
func (c *codecImpl) openBundle(
	bundle models.BackupBundle, key []byte,
) (models.BundleSnapshot, error) {
	if bundle.Version != models.BackupBundleFormatVersion {
		return models.BundleSnapshot{}, fmt.Errorf(
			"unsupported bundle version '%s' [%w]", bundle.Version, ErrMalformedBundle,
		)
	}
	if !bundle.Encrypted {
		return models.BundleSnapshot{}, fmt.Errorf(
			"bundle payload is not encrypted [%w]", ErrMalformedBundle,
		)
	}

	sealed, err := base64.StdEncoding.DecodeString(bundle.Data)
	if err != nil {
		return models.BundleSnapshot{}, fmt.Errorf(
			"bundle payload is not valid base64 [%w]", ErrMalformedBundle,
		)
	}

	plainText, err := encryption.Decrypt(sealed, key)
	if err != nil {
		return models.BundleSnapshot{}, fmt.Errorf("failed to unseal bundle [%w]", err)
	}

	var snapshot models.BundleSnapshot
	if err := json.Unmarshal(plainText, &snapshot); err != nil {
		return models.BundleSnapshot{}, fmt.Errorf(
			"bundle payload does not parse [%w]", ErrMalformedBundle,
		)
	}

	if snapshot.Version != models.BackupBundleFormatVersion {
		return models.BundleSnapshot{}, fmt.Errorf(
			"unsupported snapshot version '%s' [%w]", snapshot.Version, ErrMalformedBundle,
		)
	}
	if snapshot.Folders == nil || snapshot.Items == nil {
		return models.BundleSnapshot{}, fmt.Errorf(
			"snapshot is missing its folder or item collections [%w]", ErrMalformedBundle,
		)
	}

	return snapshot, nil
}

/*
Import restore a backup bundle into an account

	@param ctx context.Context - execution context
	@param account models.Account - the destination account
	@param bundle models.BackupBundle - the bundle to restore
	@param key []byte - the key the bundle was sealed under
	@param clearExisting bool - when true, the account's existing folders and
	    items are removed before the restore
	@param activeDBClient Database - existing database transaction
	@returns counts of restored folders and items
*/
func (c *codecImpl) Import(
	ctx context.Context,
	account models.Account,
	bundle models.BackupBundle,
	key []byte,
	clearExisting bool,
	activeDBClient db.Database,
) (ImportSummary, error) {
	logTags := c.GetLogTagsForContext(ctx)

	snapshot, err := c.openBundle(bundle, key)
	if err != nil {
		return ImportSummary{}, err
	}

	lock := c.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	summary := ImportSummary{}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, c.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var rootEntry models.Folder
			var err error

			rootRestored := false
			if clearExisting {
				if err := dbClient.DeleteAllAccountData(dbCtx, account); err != nil {
					return fmt.Errorf("failed to clear existing account data [%w]", err)
				}
				rootEntry, err = dbClient.RestoreRootFolder(dbCtx, account)
				if err != nil {
					return fmt.Errorf("failed to restore root folder [%w]", err)
				}
				rootRestored = true
			} else {
				rootEntry, err = dbClient.GetRootFolder(dbCtx, account)
				if err != nil {
					return fmt.Errorf("failed to find destination root folder [%w]", err)
				}
			}

			// Bundle folder IDs are source-side; each restored folder gets a
			// fresh ID, and this map carries the remapping for parent and
			// item references.
			folderIDMap := map[string]string{}
			pending := []models.BundleFolder{}

			for _, folder := range snapshot.Folders {
				if folder.ParentID == nil && folder.Name == models.RootFolderName {
					// The bundle root maps onto the destination root
					folderIDMap[folder.ID] = rootEntry.ID
					if rootRestored {
						summary.FoldersImported++
					}
					continue
				}
				pending = append(pending, folder)
			}

			// A folder can only be restored after its parent, but the bundle
			// makes no ordering promise. Repeated passes restore whichever
			// folders have a resolved parent until the set stops shrinking.
			for len(pending) > 0 {
				remaining := []models.BundleFolder{}

				for _, folder := range pending {
					// A parentless non-root folder reattaches under the root
					parentID := rootEntry.ID
					if folder.ParentID != nil {
						mapped, ok := folderIDMap[*folder.ParentID]
						if !ok {
							remaining = append(remaining, folder)
							continue
						}
						parentID = mapped
					}

					newFolder, err := dbClient.DefineNewFolder(
						dbCtx, account, folder.Name, parentID,
					)
					if err != nil {
						return fmt.Errorf(
							"failed to restore folder '%s' [%w]", folder.Name, err,
						)
					}
					folderIDMap[folder.ID] = newFolder.ID
					summary.FoldersImported++
				}

				if len(remaining) == len(pending) {
					// Remaining parents are unresolvable; those subtrees are
					// skipped
					log.WithFields(logTags).
						WithField("account", account.ID).
						WithField("skipped_folders", len(remaining)).
						Warn("Bundle folders reference unknown parents")
					break
				}
				pending = remaining
			}

			for _, item := range snapshot.Items {
				if item.Type == models.ItemTypeFile {
					continue
				}
				folderID, ok := folderIDMap[item.FolderID]
				if !ok {
					log.WithFields(logTags).
						WithField("account", account.ID).
						WithField("item", item.Name).
						Warn("Bundle item references an unrestored folder")
					continue
				}

				params := db.NewItemParams{
					Name:        item.Name,
					Type:        item.Type,
					EncContent:  item.EncContent,
					ContentHash: item.ContentHash,
					FolderID:    folderID,
					Pinned:      item.Pinned,
				}
				if len(item.Tags) > 0 {
					if err := json.Unmarshal(item.Tags, &params.Tags); err != nil {
						return fmt.Errorf(
							"item '%s' carries unparsable tags [%w]", item.Name, ErrMalformedBundle,
						)
					}
				}

				newItem, err := dbClient.DefineNewItem(dbCtx, account, params)
				if err != nil {
					return fmt.Errorf("failed to restore item '%s' [%w]", item.Name, err)
				}
				if len(item.EncContent) > 0 {
					if _, err := dbClient.DefineNewVersionForItem(
						dbCtx, newItem, item.EncContent, newItem.CreatedAt,
					); err != nil {
						return fmt.Errorf(
							"failed to restore content version of item '%s' [%w]", item.Name, err,
						)
					}
				}
				summary.ItemsImported++
			}

			return dbClient.RecordBackupEvent(
				dbCtx,
				models.VaultEventTypeImportBackup,
				account,
				summary.FoldersImported,
				summary.ItemsImported,
			)
		},
	); dbErr != nil {
		return ImportSummary{}, fmt.Errorf(
			"failed to restore bundle into account %s [%w]", account.ID, dbErr,
		)
	}

	log.WithFields(logTags).
		WithField("account", account.ID).
		WithField("folders", summary.FoldersImported).
		WithField("items", summary.ItemsImported).
		Info("Imported account backup bundle")

	return summary, nil
}
