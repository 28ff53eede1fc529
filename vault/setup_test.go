package vault_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
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
