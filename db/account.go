package db

import (
	"context"
	"fmt"

	"github.com/alwitt/coffre/models"
	"github.com/google/uuid"
)

/*
RegisterAccount record a new user account along with its root folder

	@param ctx context.Context - execution context
	@param email string - account email
	@param encKeyMaterial []byte - wrapped per-account symmetric key
	@returns the account entry and its root folder
*/
func (d *databaseImpl) RegisterAccount(
	_ context.Context, email string, encKeyMaterial []byte,
) (models.Account, models.Folder, error) {
	newEntry := AccountDBEntry{
		Account: models.Account{
			ID:             uuid.NewString(),
			Email:          email,
			EncKeyMaterial: encKeyMaterial,
			State:          models.AccountStateActive,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Account{}, models.Folder{}, fmt.Errorf(
			"new account '%s' entry is invalid [%w]", email, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Account{}, models.Folder{}, fmt.Errorf(
			"new account '%s' entry insert failed [%w]", email, tmp.Error,
		)
	}

	// Every account starts with its root folder
	rootEntry := FolderDBEntry{
		Folder: models.Folder{
			ID:        uuid.NewString(),
			Name:      models.RootFolderName,
			AccountID: newEntry.ID,
		},
	}
	if tmp := d.db.Create(&rootEntry); tmp.Error != nil {
		return models.Account{}, models.Folder{}, fmt.Errorf(
			"root folder insert for account '%s' failed [%w]", email, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		models.VaultEventTypeRegisterAccount, newEntry.ID, nil,
	); err != nil {
		return models.Account{}, models.Folder{}, fmt.Errorf(
			"failed to log register account audit event [%w]", err,
		)
	}

	return newEntry.Account, rootEntry.Folder, nil
}

// getAccountEntry fetch one account by ID
func (d *databaseImpl) getAccountEntry(accountID string) (AccountDBEntry, error) {
	var entry AccountDBEntry
	err := d.db.Where("id = ?", accountID).First(&entry).Error
	return entry, err
}

/*
GetAccount fetch an account by ID

	@param ctx context.Context - execution context
	@param accountID string - account ID
	@returns account entry
*/
func (d *databaseImpl) GetAccount(
	_ context.Context, accountID string,
) (models.Account, error) {
	entry, err := d.getAccountEntry(accountID)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to fetch account %s [%w]", accountID, err)
	}
	return entry.Account, nil
}

/*
GetAccountByEmail fetch an account by email

	@param ctx context.Context - execution context
	@param email string - account email
	@returns account entry
*/
func (d *databaseImpl) GetAccountByEmail(
	_ context.Context, email string,
) (models.Account, error) {
	var entry AccountDBEntry
	if tmp := d.db.Where("email = ?", email).First(&entry); tmp.Error != nil {
		return models.Account{}, fmt.Errorf("failed to fetch account '%s' [%w]", email, tmp.Error)
	}
	return entry.Account, nil
}

// updateAccountState update an account entry with new state
func (d *databaseImpl) updateAccountState(
	accountID string, newState models.AccountStateENUMType,
) error {
	entry, err := d.getAccountEntry(accountID)
	if err != nil {
		return fmt.Errorf("failed to fetch account %s [%w]", accountID, err)
	}

	if entry.State == newState {
		// NOOP
		return nil
	}

	if err := entry.ValidateNextState(newState); err != nil {
		return fmt.Errorf("account state change to %s not allowed [%w]", newState, err)
	}

	entry.State = newState
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return fmt.Errorf("account state change update failed [%w]", tmp.Error)
	}

	return nil
}

/*
MarkAccountLocked mark account is locked

	@param ctx context.Context - execution context
	@param accountID string - account ID
*/
func (d *databaseImpl) MarkAccountLocked(_ context.Context, accountID string) error {
	return d.updateAccountState(accountID, models.AccountStateLocked)
}

/*
MarkAccountActive mark account is active

	@param ctx context.Context - execution context
	@param accountID string - account ID
*/
func (d *databaseImpl) MarkAccountActive(_ context.Context, accountID string) error {
	return d.updateAccountState(accountID, models.AccountStateActive)
}
