// Package suite provides the cryptographic primitives the conversation
// protocol is built on: signing, verification, AEAD and key derivation.
//
// Two interchangeable backends exist. Curve25519 uses Ed25519 signatures and
// X25519 key agreement; P256 uses ECDSA and ECDH over NIST P-256. Both share
// AES-256-GCM and HKDF-SHA-256. Peers in one conversation must use the same
// backend.
package suite

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"mini_chat/internal/cryptographic/encryption"
	"mini_chat/internal/cryptographic/kdf"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"
)

type Suite interface {
	Name() string
	GenerateIdentity() (*model.Identity, error)

	// Sign signs payload with the identity's signing key.
	Sign(payload []byte, identity *model.Identity) ([]byte, error)
	// Verify never errors: any failure, including an unparsable key, is false.
	Verify(payload, signature []byte, signerPublicKeyPem string) bool

	DeriveSharedKey(self *model.Identity, peerDhPublicKeyPem string, salt string) ([]byte, error)
	DeriveGroupKey(groupSecret string, salt string) ([]byte, error)

	Encrypt(plaintext, key, associatedData []byte) (*model.EncryptedPayload, error)
	Decrypt(payload *model.EncryptedPayload, key []byte) ([]byte, error)
}

func ByName(name string) (Suite, error) {
	switch name {
	case "", Curve25519Name:
		return NewCurve25519(), nil
	case P256Name:
		return NewP256(), nil
	default:
		return nil, fmt.Errorf("%q: %w", name, errs.ErrUnknownSuite)
	}
}

// IdentityID is the stable identifier derived from a signing public key.
func IdentityID(signingPublicKeyPem string) string {
	sum := sha256.Sum256([]byte(signingPublicKeyPem))
	return hex.EncodeToString(sum[:])
}

func newIdentity(suite, sigPub, sigPriv, dhPub, dhPriv string) *model.Identity {
	return &model.Identity{
		ID:                   IdentityID(sigPub),
		Suite:                suite,
		SigningPublicKeyPem:  sigPub,
		SigningPrivateKeyPem: sigPriv,
		DhPublicKeyPem:       dhPub,
		DhPrivateKeyPem:      dhPriv,
		CreatedAt:            time.Now().UTC(),
	}
}

// aeadKDF holds the parts shared by every backend.
type aeadKDF struct{}

func (aeadKDF) DeriveGroupKey(groupSecret string, salt string) ([]byte, error) {
	if groupSecret == "" {
		return nil, fmt.Errorf("group secret: %w", errs.ErrMissingKeyMaterial)
	}
	return kdf.ConversationKey([]byte(groupSecret), salt)
}

func (aeadKDF) Encrypt(plaintext, key, associatedData []byte) (*model.EncryptedPayload, error) {
	nonce, ct, tag, err := encryption.AEADSeal(key, plaintext, associatedData)
	if err != nil {
		return nil, err
	}
	return &model.EncryptedPayload{
		Algorithm:      model.AlgAES256GCM,
		Nonce:          nonce,
		Ciphertext:     ct,
		AuthTag:        tag,
		AssociatedData: associatedData,
	}, nil
}

func (aeadKDF) Decrypt(payload *model.EncryptedPayload, key []byte) ([]byte, error) {
	if payload == nil || payload.Algorithm != model.AlgAES256GCM {
		return nil, fmt.Errorf("unsupported algorithm: %w", errs.ErrDecryption)
	}
	plain, err := encryption.AEADOpen(key, payload.Nonce, payload.Ciphertext, payload.AuthTag, payload.AssociatedData)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, errs.ErrDecryption)
	}
	return plain, nil
}

func deriveFromSecret(secret []byte, salt string) ([]byte, error) {
	return kdf.ConversationKey(secret, salt)
}
