package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
)

func NewECDSAP256Keypair() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// ECDSASign signs SHA-256(message) and returns an ASN.1 DER signature.
func ECDSASign(privKey *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ecdsa.SignASN1(rand.Reader, privKey, digest[:])
}

func ECDSAVerify(pubKey *ecdsa.PublicKey, message []byte, signature []byte) bool {
	digest := sha256.Sum256(message)
	return ecdsa.VerifyASN1(pubKey, digest[:], signature)
}
