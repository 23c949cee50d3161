package soap

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	// ErrKeyMaterialUnavailable is returned by crypto operations when the key text they need was not loaded.
	ErrKeyMaterialUnavailable = errors.New("key material unavailable")
	// ErrInvalidPEMFileSpecified is returned if the certificate text holds no usable PEM or DER certificate.
	ErrInvalidPEMFileSpecified = errors.New("invalid PEM certificate specified")
)

// KeyMaterial holds the private key and the partner certificate as text.
// It is loaded once at startup and never mutated.
type KeyMaterial struct {
	PrivateKey string
	PublicCert string
}

// LoadKeyMaterial reads both key files. A missing or unreadable file is
// logged and leaves the corresponding field empty so the process can still
// start; crypto operations then report ErrKeyMaterialUnavailable.
func LoadKeyMaterial(privateKeyPath, publicCertPath string, log logrus.FieldLogger) *KeyMaterial {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &KeyMaterial{
		PrivateKey: readKeyFile(privateKeyPath, "private key", log),
		PublicCert: readKeyFile(publicCertPath, "public certificate", log),
	}
}

func readKeyFile(path, what string, log logrus.FieldLogger) string {
	if path == "" {
		log.Warnf("No %s path configured, crypto operations needing it are unavailable", what)
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warnf("Unable to load %s, crypto operations needing it are unavailable", what)
		return ""
	}
	return string(b)
}

// Available reports whether both halves of the key material are present.
func (k *KeyMaterial) Available() bool {
	return k != nil && k.PrivateKey != "" && k.PublicCert != ""
}

// PublicKeyToken returns the binary security token value: the public
// material text, base64 encoded. It is empty when no certificate was loaded.
func (k *KeyMaterial) PublicKeyToken() string {
	if k == nil || k.PublicCert == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(k.PublicCert))
}

// Certificate parses the public material as an X.509 certificate, accepting
// PEM or raw DER.
func (k *KeyMaterial) Certificate() (*x509.Certificate, error) {
	if k == nil || k.PublicCert == "" {
		return nil, ErrKeyMaterialUnavailable
	}
	der := []byte(k.PublicCert)
	if block, _ := pem.Decode(der); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, ErrInvalidPEMFileSpecified
		}
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.Join(ErrInvalidPEMFileSpecified, err)
	}
	return cert, nil
}
