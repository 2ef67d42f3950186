package suite

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"fmt"

	"mini_chat/internal/cryptographic/dh"
	"mini_chat/internal/cryptographic/pemutil"
	"mini_chat/internal/cryptographic/signature"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"
)

const Curve25519Name = "curve25519"

type Curve25519 struct {
	aeadKDF
}

func NewCurve25519() *Curve25519 {
	return &Curve25519{}
}

func (s *Curve25519) Name() string {
	return Curve25519Name
}

func (s *Curve25519) GenerateIdentity() (*model.Identity, error) {
	sigPub, sigPriv, err := signature.NewEd25519Keypair()
	if err != nil {
		return nil, err
	}
	dhKey, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}

	sigPubPem, err := pemutil.EncodePublicKey(sigPub)
	if err != nil {
		return nil, err
	}
	sigPrivPem, err := pemutil.EncodePrivateKey(sigPriv)
	if err != nil {
		return nil, err
	}
	dhPubPem, err := pemutil.EncodePublicKey(dhKey.PublicKey())
	if err != nil {
		return nil, err
	}
	dhPrivPem, err := pemutil.EncodePrivateKey(dhKey)
	if err != nil {
		return nil, err
	}

	return newIdentity(Curve25519Name, sigPubPem, sigPrivPem, dhPubPem, dhPrivPem), nil
}

func (s *Curve25519) Sign(payload []byte, identity *model.Identity) ([]byte, error) {
	key, err := pemutil.DecodePrivateKey(identity.SigningPrivateKeyPem)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key is %T, not ed25519", key)
	}
	return signature.Ed25519Sign(priv, payload)
}

func (s *Curve25519) Verify(payload, sig []byte, signerPublicKeyPem string) bool {
	key, err := pemutil.DecodePublicKey(signerPublicKeyPem)
	if err != nil {
		return false
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return false
	}
	return signature.Ed25519Verify(pub, payload, sig)
}

func (s *Curve25519) DeriveSharedKey(self *model.Identity, peerDhPublicKeyPem string, salt string) ([]byte, error) {
	if peerDhPublicKeyPem == "" {
		return nil, fmt.Errorf("peer dh key: %w", errs.ErrMissingKeyMaterial)
	}
	privKey, err := pemutil.DecodePrivateKey(self.DhPrivateKeyPem)
	if err != nil {
		return nil, fmt.Errorf("dh private key: %w", err)
	}
	priv, ok := privKey.(*ecdh.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("dh private key is %T, not ecdh", privKey)
	}
	pubKey, err := pemutil.DecodePublicKey(peerDhPublicKeyPem)
	if err != nil {
		return nil, fmt.Errorf("peer dh key: %w", err)
	}
	pub, ok := pubKey.(*ecdh.PublicKey)
	if !ok {
		return nil, fmt.Errorf("peer dh key is %T, not ecdh", pubKey)
	}

	secret, err := dh.X25519SharedSecret(priv, pub)
	if err != nil {
		return nil, err
	}
	return deriveFromSecret(secret, salt)
}
