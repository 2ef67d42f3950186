package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEd25519(t *testing.T) {
	req := require.New(t)
	pub, priv, err := NewEd25519Keypair()
	req.NoError(err)
	otherPub, _, err := NewEd25519Keypair()
	req.NoError(err)

	sig, err := Ed25519Sign(priv, []byte("payload"))
	req.NoError(err)
	req.True(Ed25519Verify(pub, []byte("payload"), sig))
	req.False(Ed25519Verify(pub, []byte("payload!"), sig))
	req.False(Ed25519Verify(otherPub, []byte("payload"), sig))
	req.False(Ed25519Verify(pub[:10], []byte("payload"), sig))

	_, err = Ed25519Sign(priv[:10], []byte("payload"))
	req.Error(err)
}

func TestECDSA(t *testing.T) {
	req := require.New(t)
	key, err := NewECDSAP256Keypair()
	req.NoError(err)
	other, err := NewECDSAP256Keypair()
	req.NoError(err)

	sig, err := ECDSASign(key, []byte("payload"))
	req.NoError(err)
	req.True(ECDSAVerify(&key.PublicKey, []byte("payload"), sig))
	req.False(ECDSAVerify(&key.PublicKey, []byte("other"), sig))
	req.False(ECDSAVerify(&other.PublicKey, []byte("payload"), sig))
	req.False(ECDSAVerify(&key.PublicKey, []byte("payload"), []byte("junk")))
}
