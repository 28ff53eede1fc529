package encryption

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// loadRSAKeyPair load the primary RSA key pair for wrapping and unwrapping account keys
func (k *keyring) loadRSAKeyPair(
	_ context.Context, certFilePath string, keyFilePath string,
) error {
	certContent, err := os.ReadFile(certFilePath)
	if err != nil {
		return fmt.Errorf("%s read error [%w]", certFilePath, err)
	}

	keyContent, err := os.ReadFile(keyFilePath)
	if err != nil {
		return fmt.Errorf("%s read error [%w]", keyFilePath, err)
	}

	certBlock, _ := pem.Decode(certContent)
	if certBlock == nil {
		return fmt.Errorf("no PEM block found in %s", certFilePath)
	}
	parsedCert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse x509 certificate in %s [%w]", certFilePath, err)
	}

	parsedPubKey, ok := parsedCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf(
			"x509 certificate in %s does not carry an RSA public key", certFilePath,
		)
	}

	keyBlock, _ := pem.Decode(keyContent)
	if keyBlock == nil {
		return fmt.Errorf("no PEM block found in %s", keyFilePath)
	}
	parsedKey, err := parseRSAPrivateKey(keyBlock.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse RSA private key in %s [%w]", keyFilePath, err)
	}

	k.rsaKey = parsedKey
	k.rsaPubKey = parsedPubKey

	return nil
}

// parseRSAPrivateKey parse a DER encoded RSA private key in either PKCS1 or PKCS8 form
func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}

	return key, nil
}
