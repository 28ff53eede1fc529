// Package coffre - encrypted personal vault storage
package coffre

import (
	"context"
	"fmt"

	"github.com/alwitt/coffre/backup"
	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/encryption"
	"github.com/alwitt/coffre/vault"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

/*
NewPersonalVault initialize a personal vault instance together with its backup codec.

Each instance is backed by a SQL database; two instances using the same database are
essentially copies of each other.

	@param ctx context.Context - execution context
	@param dbDialector gorm.Dialector - GORM dialector
	@param dbLogLevel logger.LogLevel - SQL log level
	@param primaryRSACertFile string - file path to the primary RSA certificate PEM
	@param primaryRSAKeyFile string - file path to the primary RSA certificate private key PEM
	@returns new vault instance and its backup codec
*/
func NewPersonalVault(
	ctx context.Context,
	dbDialector gorm.Dialector,
	dbLogLevel logger.LogLevel,
	primaryRSACertFile string,
	primaryRSAKeyFile string,
) (vault.PersonalVault, backup.Codec, error) {
	// Prepare persistence
	persistence, err := db.NewConnection(dbDialector, dbLogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialized persistence client [%w]", err)
	}

	// Prepare account keyring
	keyring, err := encryption.NewKeyring(ctx, encryption.KeyringParams{
		Persistence:        persistence,
		PrimaryRSACertFile: primaryRSACertFile,
		PrimaryRSAKeyFile:  primaryRSAKeyFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialized account keyring [%w]", err)
	}

	vaultInstance, err := vault.NewPersonalVault(ctx, persistence, keyring)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialized personal vault [%w]", err)
	}

	codec, err := backup.NewCodec(ctx, persistence)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialized backup codec [%w]", err)
	}

	return vaultInstance, codec, nil
}
