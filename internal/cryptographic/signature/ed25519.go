package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

func NewEd25519Keypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

func Ed25519Sign(privKey ed25519.PrivateKey, message []byte) ([]byte, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519: bad private key length %d", len(privKey))
	}
	return ed25519.Sign(privKey, message), nil
}

func Ed25519Verify(pubKey ed25519.PublicKey, message []byte, signature []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pubKey, message, signature)
}
