package suite

import (
	"errors"
	"testing"

	errs "mini_chat/internal/errors"

	"github.com/stretchr/testify/require"
)

func allSuites() []Suite {
	return []Suite{NewCurve25519(), NewP256()}
}

func TestSuite_IdentityIDIsHashOfSigningKey(t *testing.T) {
	for _, s := range allSuites() {
		t.Run(s.Name(), func(t *testing.T) {
			req := require.New(t)
			id, err := s.GenerateIdentity()
			req.NoError(err)
			req.Equal(IdentityID(id.SigningPublicKeyPem), id.ID)
			req.Len(id.ID, 64)
			req.Equal(s.Name(), id.Suite)
			req.Contains(id.SigningPublicKeyPem, "BEGIN PUBLIC KEY")
			req.Contains(id.DhPrivateKeyPem, "BEGIN PRIVATE KEY")
		})
	}
}

func TestSuite_SignVerify(t *testing.T) {
	for _, s := range allSuites() {
		t.Run(s.Name(), func(t *testing.T) {
			req := require.New(t)
			alice, err := s.GenerateIdentity()
			req.NoError(err)
			mallory, err := s.GenerateIdentity()
			req.NoError(err)

			payload := []byte(`{"v":1,"type":"chat"}`)
			sig, err := s.Sign(payload, alice)
			req.NoError(err)

			req.True(s.Verify(payload, sig, alice.SigningPublicKeyPem))
			req.False(s.Verify(payload, sig, mallory.SigningPublicKeyPem))
			req.False(s.Verify([]byte(`{"v":1,"type":"revoke"}`), sig, alice.SigningPublicKeyPem))
			req.False(s.Verify(payload, sig, "not a pem"))
			req.False(s.Verify(payload, nil, alice.SigningPublicKeyPem))
		})
	}
}

func TestSuite_VerifyRejectsForeignKeyType(t *testing.T) {
	req := require.New(t)
	ed, p := NewCurve25519(), NewP256()
	edID, err := ed.GenerateIdentity()
	req.NoError(err)

	payload := []byte("hello")
	sig, err := ed.Sign(payload, edID)
	req.NoError(err)
	req.False(p.Verify(payload, sig, edID.SigningPublicKeyPem))
}

func TestSuite_DeriveSharedKeyIsSymmetric(t *testing.T) {
	for _, s := range allSuites() {
		t.Run(s.Name(), func(t *testing.T) {
			req := require.New(t)
			alice, err := s.GenerateIdentity()
			req.NoError(err)
			bob, err := s.GenerateIdentity()
			req.NoError(err)
			carol, err := s.GenerateIdentity()
			req.NoError(err)

			ab, err := s.DeriveSharedKey(alice, bob.DhPublicKeyPem, "dm:a:b")
			req.NoError(err)
			ba, err := s.DeriveSharedKey(bob, alice.DhPublicKeyPem, "dm:a:b")
			req.NoError(err)
			req.Equal(ab, ba)
			req.Len(ab, 32)

			other, err := s.DeriveSharedKey(alice, bob.DhPublicKeyPem, "dm:a:c")
			req.NoError(err)
			req.NotEqual(ab, other)

			ac, err := s.DeriveSharedKey(alice, carol.DhPublicKeyPem, "dm:a:b")
			req.NoError(err)
			req.NotEqual(ab, ac)
		})
	}
}

func TestSuite_DeriveSharedKeyMissingPeer(t *testing.T) {
	req := require.New(t)
	s := NewCurve25519()
	alice, err := s.GenerateIdentity()
	req.NoError(err)

	_, err = s.DeriveSharedKey(alice, "", "dm:a:b")
	req.True(errors.Is(err, errs.ErrMissingKeyMaterial))
}

func TestSuite_DeriveGroupKey(t *testing.T) {
	req := require.New(t)
	s := NewP256()

	k1, err := s.DeriveGroupKey("s3cret", "group-1")
	req.NoError(err)
	k2, err := NewCurve25519().DeriveGroupKey("s3cret", "group-1")
	req.NoError(err)
	req.Equal(k1, k2)

	k3, err := s.DeriveGroupKey("s3cret", "group-2")
	req.NoError(err)
	req.NotEqual(k1, k3)

	_, err = s.DeriveGroupKey("", "group-1")
	req.ErrorIs(err, errs.ErrMissingKeyMaterial)
}

func TestSuite_EncryptDecrypt(t *testing.T) {
	req := require.New(t)
	s := NewCurve25519()
	key, err := s.DeriveGroupKey("s3cret", "group-1")
	req.NoError(err)
	aad := []byte("group-1:alice:1700000000000")

	for _, text := range []string{"", "hello", "héllo wörld 🌍"} {
		enc, err := s.Encrypt([]byte(text), key, aad)
		req.NoError(err)
		req.Len(enc.Nonce, 12)
		req.Len(enc.AuthTag, 16)
		req.Equal(aad, enc.AssociatedData)

		plain, err := s.Decrypt(enc, key)
		req.NoError(err)
		req.Equal(text, string(plain))
	}
}

func TestSuite_EncryptUsesFreshNonce(t *testing.T) {
	req := require.New(t)
	s := NewP256()
	key, err := s.DeriveGroupKey("s3cret", "group-1")
	req.NoError(err)

	a, err := s.Encrypt([]byte("same"), key, nil)
	req.NoError(err)
	b, err := s.Encrypt([]byte("same"), key, nil)
	req.NoError(err)
	req.NotEqual(a.Nonce, b.Nonce)
	req.NotEqual(a.Ciphertext, b.Ciphertext)
}

func TestSuite_DecryptFailures(t *testing.T) {
	req := require.New(t)
	s := NewCurve25519()
	key, err := s.DeriveGroupKey("s3cret", "group-1")
	req.NoError(err)
	wrong, err := s.DeriveGroupKey("other", "group-1")
	req.NoError(err)

	enc, err := s.Encrypt([]byte("hello"), key, []byte("aad"))
	req.NoError(err)

	_, err = s.Decrypt(enc, wrong)
	req.ErrorIs(err, errs.ErrDecryption)

	tampered := *enc
	tampered.AuthTag = append([]byte(nil), enc.AuthTag...)
	tampered.AuthTag[0] ^= 0xff
	_, err = s.Decrypt(&tampered, key)
	req.ErrorIs(err, errs.ErrDecryption)

	rebound := *enc
	rebound.AssociatedData = []byte("other-aad")
	_, err = s.Decrypt(&rebound, key)
	req.ErrorIs(err, errs.ErrDecryption)

	unknown := *enc
	unknown.Algorithm = "ROT13"
	_, err = s.Decrypt(&unknown, key)
	req.ErrorIs(err, errs.ErrDecryption)
}

func TestByName(t *testing.T) {
	req := require.New(t)

	s, err := ByName("p256")
	req.NoError(err)
	req.Equal(P256Name, s.Name())

	s, err = ByName("")
	req.NoError(err)
	req.Equal(Curve25519Name, s.Name())

	_, err = ByName("rsa")
	req.ErrorIs(err, errs.ErrUnknownSuite)
}
