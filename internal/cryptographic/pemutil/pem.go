// Package pemutil encodes key pairs as PEM: PKIX for public keys and
// PKCS#8 for private keys.
package pemutil

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const (
	publicKeyBlock  = "PUBLIC KEY"
	privateKeyBlock = "PRIVATE KEY"
)

func EncodePublicKey(pub any) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: publicKeyBlock, Bytes: der})), nil
}

func EncodePrivateKey(priv any) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("marshal private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: privateKeyBlock, Bytes: der})), nil
}

// DecodePublicKey returns ed25519.PublicKey, *ecdh.PublicKey (X25519) or
// *ecdsa.PublicKey (P-256, used for both signing and key agreement).
func DecodePublicKey(data string) (any, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil || block.Type != publicKeyBlock {
		return nil, fmt.Errorf("no %q PEM block", publicKeyBlock)
	}
	return x509.ParsePKIXPublicKey(block.Bytes)
}

// DecodePrivateKey returns ed25519.PrivateKey, *ecdh.PrivateKey (X25519) or
// *ecdsa.PrivateKey (P-256).
func DecodePrivateKey(data string) (any, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil || block.Type != privateKeyBlock {
		return nil, fmt.Errorf("no %q PEM block", privateKeyBlock)
	}
	return x509.ParsePKCS8PrivateKey(block.Bytes)
}
