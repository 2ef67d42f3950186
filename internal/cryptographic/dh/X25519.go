package dh

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

func NewX25519KeyPair() (*ecdh.PrivateKey, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return priv, nil
}

// X25519SharedSecret computes priv * pub. A low-order peer point yields an
// all-zero output, which curve25519.X25519 rejects.
func X25519SharedSecret(priv *ecdh.PrivateKey, pub *ecdh.PublicKey) ([]byte, error) {
	if priv.Curve() != ecdh.X25519() || pub.Curve() != ecdh.X25519() {
		return nil, fmt.Errorf("x25519: curve mismatch")
	}
	return curve25519.X25519(priv.Bytes(), pub.Bytes())
}
