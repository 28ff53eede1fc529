package coffre_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alwitt/coffre"
	"github.com/alwitt/coffre/db"
	"github.com/alwitt/coffre/models"
	"github.com/alwitt/coffre/vault"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// generateTestRSAFiles create a self-signed RSA certificate and private key
// PEM pair for unit-testing
func generateTestRSAFiles(t *testing.T) (string, string) {
	assert := assert.New(t)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.Nil(err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "coffre-unit-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour * 24),
	}
	certDER, err := x509.CreateCertificate(
		rand.Reader, &template, &template, &rsaKey.PublicKey, rsaKey,
	)
	assert.Nil(err)

	certFile := filepath.Join(t.TempDir(), "ut_rsa.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	assert.Nil(os.WriteFile(certFile, certPEM, 0o600))

	keyFile := filepath.Join(t.TempDir(), "ut_rsa.key")
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey),
	})
	assert.Nil(os.WriteFile(keyFile, keyPEM, 0o600))

	return certFile, keyFile
}

func TestPersonalVaultEndToEnd(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	ctx := context.Background()

	// Create a unique temporary DB file for this test
	testDB := fmt.Sprintf("/tmp/coffre_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	// Create database tables
	dbClient, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(dbClient.RunSQLInTransaction(ctx, db.DefineTables))

	testCertFile, testKeyFile := generateTestRSAFiles(t)
	uut, codec, err := coffre.NewPersonalVault(
		ctx, db.GetSqliteDialector(testDB), logger.Error, testCertFile, testKeyFile,
	)
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 1 – Register an account
	account, contentKey, err := uut.RegisterAccount(
		ctx, fmt.Sprintf("%s@unit-test.org", uuid.NewString()), nil,
	)
	assert.Nil(err)

	rootFolder, err := uut.RootFolder(ctx, account, nil)
	assert.Nil(err)

	// 2 – Build a folder tree with a few items
	workFolder, err := uut.CreateFolder(ctx, account, "work", rootFolder.ID, nil)
	assert.Nil(err)
	apiFolder, err := uut.CreateFolder(ctx, account, "api-keys", workFolder.ID, nil)
	assert.Nil(err)

	noteContent := []byte(uuid.NewString())
	note, err := uut.CreateItem(ctx, account, vault.ItemSpec{
		Name:     "meeting-notes",
		Type:     models.ItemTypeText,
		Content:  noteContent,
		FolderID: workFolder.ID,
	}, contentKey, nil)
	assert.Nil(err)

	keyContent := []byte(uuid.NewString())
	_, err = uut.CreateItem(ctx, account, vault.ItemSpec{
		Name:     "prod-api-key",
		Type:     models.ItemTypeAPIKey,
		Content:  keyContent,
		FolderID: apiFolder.ID,
		Pinned:   true,
	}, contentKey, nil)
	assert.Nil(err)

	// 3 – Revise the note; both versions stay readable
	revisedContent := []byte(uuid.NewString())
	_, newVersion, err := uut.UpdateItemContent(ctx, note.ID, revisedContent, contentKey, nil)
	assert.Nil(err)
	assert.NotNil(newVersion)

	fetched, err := uut.ItemContent(ctx, note.ID, contentKey, nil)
	assert.Nil(err)
	assert.Equal(revisedContent, fetched)

	_, versions, err := uut.ListItemVersions(ctx, note.ID, nil)
	assert.Nil(err)
	assert.Len(versions, 2)
	fetched, err = uut.ItemContentAtVersion(ctx, versions[1].ID, contentKey, nil)
	assert.Nil(err)
	assert.Equal(noteContent, fetched)

	// -------------------------------------------------------------------------
	// 4 – Export the account, and restore it into a second account
	bundle, err := codec.Export(ctx, account, contentKey, nil)
	assert.Nil(err)

	otherAccount, otherKey, err := uut.RegisterAccount(
		ctx, fmt.Sprintf("%s@unit-test.org", uuid.NewString()), nil,
	)
	assert.Nil(err)
	assert.NotEqual(contentKey, otherKey)

	summary, err := codec.Import(ctx, otherAccount, bundle, contentKey, false, nil)
	assert.Nil(err)
	assert.Equal(2, summary.FoldersImported)
	assert.Equal(2, summary.ItemsImported)

	// 5 – The restored content decrypts under the original account key
	folders, err := uut.ListFolders(ctx, otherAccount, nil)
	assert.Nil(err)
	assert.Len(folders, 3)

	err = dbClient.UseDatabase(ctx, func(dbCtx context.Context, client db.Database) error {
		items, err := client.ListItems(dbCtx, otherAccount, db.ItemQueryFilter{})
		if err != nil {
			return err
		}
		assert.Len(items, 2)
		for _, item := range items {
			if item.Name == "meeting-notes" {
				fetched, err := uut.ItemContent(dbCtx, item.ID, contentKey, client)
				if err != nil {
					return err
				}
				assert.Equal(revisedContent, fetched)
			}
		}
		return nil
	})
	assert.Nil(err)
}
