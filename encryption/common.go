// Package encryption - content cipher and account key management
package encryption

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

/*
Keyring manager for per-account content keys. It is solely responsible for
generating and supplying account key material in the system.

Each account receives exactly one symmetric content key at registration, for
its entire lifetime. The plaintext key leaves the server only once, in the
registration response; at rest it is stored wrapped under the service's
primary RSA key pair. There is no rotation, recovery, or multi-key operation.
*/
type Keyring interface {
	/*
		GenerateAccountKey generate a new account content key

		Called exactly once per account, at registration. The plaintext key is
		returned for relay to the client; the wrapped form is what the caller
		persists on the account record.

			@param ctx context.Context - execution context
			@returns the plaintext key and its wrapped form
	*/
	GenerateAccountKey(ctx context.Context) ([]byte, []byte, error)

	/*
		GetAccountKey fetch the content key of an account

		Unwraps the stored key material, caching the result. An account whose
		record carries no key material is corrupt; that surfaces as an
		integrity error, not a normal error path.

			@param ctx context.Context - execution context
			@param accountID string - the account ID
			@param activeDBClient Database - existing database transaction
			@return the plaintext content key
	*/
	GetAccountKey(
		ctx context.Context, accountID string, activeDBClient db.Database,
	) ([]byte, error)

	/*
		EvictAccountKey drop an account's key from the cache

			@param ctx context.Context - execution context
			@param accountID string - the account ID
	*/
	EvictAccountKey(ctx context.Context, accountID string)
}

// keyring implements Keyring
type keyring struct {
	goutils.Component

	persistence db.Client
	validator   *validator.Validate

	rsaKey    *rsa.PrivateKey
	rsaPubKey *rsa.PublicKey

	keyCacheLock *sync.RWMutex
	accountKeys  map[string][]byte
}

// KeyringParams keyring init parameters
//
// The primary RSA key pair is used to wrap and unwrap account content keys
// for at-rest storage
type KeyringParams struct {
	// Persistence persistence layer client
	Persistence db.Client `validate:"-"`
	// PrimaryRSACertFile file path to the primary RSA certificate PEM
	PrimaryRSACertFile string `validate:"required,file"`
	// PrimaryRSAKeyFile file path to the primary RSA certificate private key PEM
	PrimaryRSAKeyFile string `validate:"required,file"`
}

/*
NewKeyring define new account keyring

	@param ctx context.Context - execution context
	@param params KeyringParams - keyring parameters
	@returns keyring instance
*/
func NewKeyring(ctx context.Context, params KeyringParams) (Keyring, error) {
	logTags := log.Fields{"module": "encryption", "component": "keyring"}

	instance := &keyring{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence:  params.Persistence,
		validator:    validator.New(),
		keyCacheLock: &sync.RWMutex{},
		accountKeys:  make(map[string][]byte),
	}
	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	// Load the primary RSA certificate and private key
	if err := instance.validator.Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid keyring init parameters [%w]", err)
	}
	if err := instance.loadRSAKeyPair(
		ctx, params.PrimaryRSACertFile, params.PrimaryRSAKeyFile,
	); err != nil {
		return nil, fmt.Errorf("failed to load primary RSA key pair [%w]", err)
	}

	return instance, nil
}
