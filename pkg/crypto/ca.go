package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	caKeyBits     = 4096
	agentKeyBits  = 2048
	caValidity    = 10 * 365 * 24 * time.Hour
	agentValidity = 365 * 24 * time.Hour
)

// CA is the hub's self-signed certificate authority. LoadCA receives the
// already-decrypted key PEM and parses it immediately; there is no lazy
// decryption. The parsed key is held in memory, read-only, for the rest of
// the process lifetime (spec.md §4.B, §5).
type CA struct {
	mu       sync.Mutex
	cert     *x509.Certificate
	certPEM  []byte
	key      *rsa.PrivateKey // parsed by LoadCA
	keyPEM   []byte          // plaintext PEM as passed to LoadCA
	serial   *big.Int
	serialMu sync.Mutex
}

// GenerateCA creates a fresh 4096-bit self-signed CA keypair.
func GenerateCA() (certPEM, keyPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, caKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ca key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "Sonde Hub Root CA",
			Organization: []string{"Sonde Hub"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("self-sign ca cert: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}

// LoadCA parses a CA from its certificate and (already decrypted) key PEM.
func LoadCA(certPEM, keyPEM []byte) (*CA, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("invalid ca certificate pem")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse ca certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("invalid ca key pem")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse ca key: %w", err)
	}

	return &CA{cert: cert, certPEM: certPEM, key: key, keyPEM: keyPEM}, nil
}

// CertPEM returns the CA's public certificate.
func (c *CA) CertPEM() []byte { return c.certPEM }

// PublicKey returns the CA's public key, used to verify agent signatures
// and message signatures.
func (c *CA) PublicKey() *rsa.PublicKey {
	return c.cert.PublicKey.(*rsa.PublicKey)
}

// PrivateKey returns the CA private key for signing. Read-only, lock-free
// after the first LoadCA call (spec.md §5 "held once in memory... read-only
// and lock-free").
func (c *CA) PrivateKey() *rsa.PrivateKey { return c.key }

// KeyPEM returns the CA's plaintext private key PEM, used by cmd/hubd to
// build the server-side tls.Certificate for the hub's own mTLS listener.
func (c *CA) KeyPEM() []byte { return c.keyPEM }

// IssueAgentCertificate mints a client certificate for agentName, signed by
// the CA, with a unique serial and short validity (spec.md §4.B).
func (c *CA) IssueAgentCertificate(agentName string) (certPEM, keyPEM []byte, fingerprint string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, agentKeyBits)
	if err != nil {
		return nil, nil, "", fmt.Errorf("generate agent key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, "", err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: agentName,
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(agentValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, c.cert, &key.PublicKey, c.key)
	if err != nil {
		return nil, nil, "", fmt.Errorf("sign agent certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	fingerprint = Fingerprint(der)
	return certPEM, keyPEM, fingerprint, nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	return serial, nil
}
