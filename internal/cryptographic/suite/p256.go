package suite

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"mini_chat/internal/cryptographic/dh"
	"mini_chat/internal/cryptographic/pemutil"
	"mini_chat/internal/cryptographic/signature"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"
)

const P256Name = "p256"

type P256 struct {
	aeadKDF
}

func NewP256() *P256 {
	return &P256{}
}

func (s *P256) Name() string {
	return P256Name
}

func (s *P256) GenerateIdentity() (*model.Identity, error) {
	sigKey, err := signature.NewECDSAP256Keypair()
	if err != nil {
		return nil, err
	}
	dhKey, err := dh.NewP256KeyPair()
	if err != nil {
		return nil, err
	}

	sigPubPem, err := pemutil.EncodePublicKey(&sigKey.PublicKey)
	if err != nil {
		return nil, err
	}
	sigPrivPem, err := pemutil.EncodePrivateKey(sigKey)
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

	return newIdentity(P256Name, sigPubPem, sigPrivPem, dhPubPem, dhPrivPem), nil
}

func (s *P256) Sign(payload []byte, identity *model.Identity) ([]byte, error) {
	key, err := pemutil.DecodePrivateKey(identity.SigningPrivateKeyPem)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok || priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key is %T, not ecdsa p-256", key)
	}
	return signature.ECDSASign(priv, payload)
}

func (s *P256) Verify(payload, sig []byte, signerPublicKeyPem string) bool {
	key, err := pemutil.DecodePublicKey(signerPublicKeyPem)
	if err != nil {
		return false
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return false
	}
	return signature.ECDSAVerify(pub, payload, sig)
}

func (s *P256) DeriveSharedKey(self *model.Identity, peerDhPublicKeyPem string, salt string) ([]byte, error) {
	if peerDhPublicKeyPem == "" {
		return nil, fmt.Errorf("peer dh key: %w", errs.ErrMissingKeyMaterial)
	}
	privKey, err := pemutil.DecodePrivateKey(self.DhPrivateKeyPem)
	if err != nil {
		return nil, fmt.Errorf("dh private key: %w", err)
	}
	priv, err := p256ECDHPrivate(privKey)
	if err != nil {
		return nil, err
	}
	pubKey, err := pemutil.DecodePublicKey(peerDhPublicKeyPem)
	if err != nil {
		return nil, fmt.Errorf("peer dh key: %w", err)
	}
	pub, err := p256ECDHPublic(pubKey)
	if err != nil {
		return nil, err
	}

	secret, err := dh.P256SharedSecret(priv, pub)
	if err != nil {
		return nil, err
	}
	return deriveFromSecret(secret, salt)
}

// PKCS#8 and PKIX encode P-256 ECDH keys as plain EC keys, so they decode
// as ecdsa types.
func p256ECDHPrivate(key any) (*ecdh.PrivateKey, error) {
	switch k := key.(type) {
	case *ecdh.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k.ECDH()
	default:
		return nil, fmt.Errorf("dh private key is %T, not p-256", key)
	}
}

func p256ECDHPublic(key any) (*ecdh.PublicKey, error) {
	switch k := key.(type) {
	case *ecdh.PublicKey:
		return k, nil
	case *ecdsa.PublicKey:
		return k.ECDH()
	default:
		return nil, fmt.Errorf("peer dh key is %T, not p-256", key)
	}
}
