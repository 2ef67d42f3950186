package dh

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

func NewP256KeyPair() (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return priv, nil
}

func P256SharedSecret(priv *ecdh.PrivateKey, pub *ecdh.PublicKey) ([]byte, error) {
	if priv.Curve() != ecdh.P256() || pub.Curve() != ecdh.P256() {
		return nil, fmt.Errorf("p256: curve mismatch")
	}
	return priv.ECDH(pub)
}
