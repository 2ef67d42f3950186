package keyagreement

import (
	"errors"
	"testing"

	"mini_chat/internal/cryptographic/suite"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"

	"github.com/stretchr/testify/require"
)

func TestResolver_DMKeysMatch(t *testing.T) {
	req := require.New(t)
	s := suite.NewCurve25519()
	alice, err := s.GenerateIdentity()
	req.NoError(err)
	bob, err := s.GenerateIdentity()
	req.NoError(err)

	conv := &model.ConversationConfig{
		ID:           "dm-1",
		Kind:         model.KindDM,
		Participants: []model.Participant{alice.Participant(), bob.Participant()},
	}

	sendKey, err := NewResolver(s, alice).SendingKey(conv)
	req.NoError(err)
	req.Len(sendKey, 32)

	env := &model.Envelope{SenderID: alice.ID, SenderDhPublicKeyPem: alice.DhPublicKeyPem}
	recvKey, err := NewResolver(s, bob).ReceivingKey(conv, env)
	req.NoError(err)
	req.Equal(sendKey, recvKey)

	// alice opening her own echo uses the configured peer key
	echoKey, err := NewResolver(s, alice).ReceivingKey(conv, env)
	req.NoError(err)
	req.Equal(sendKey, echoKey)
}

func TestResolver_DMWithoutPeer(t *testing.T) {
	req := require.New(t)
	s := suite.NewP256()
	alice, err := s.GenerateIdentity()
	req.NoError(err)

	conv := &model.ConversationConfig{
		ID:           "dm-2",
		Kind:         model.KindDM,
		Participants: []model.Participant{alice.Participant()},
	}
	_, err = NewResolver(s, alice).SendingKey(conv)
	req.True(errors.Is(err, errs.ErrMissingKeyMaterial))
}

func TestResolver_GroupKey(t *testing.T) {
	req := require.New(t)
	s := suite.NewCurve25519()
	alice, err := s.GenerateIdentity()
	req.NoError(err)
	bob, err := s.GenerateIdentity()
	req.NoError(err)

	conv := &model.ConversationConfig{ID: "group-1", Kind: model.KindGroup, GroupSecret: "s3cret"}
	a, err := NewResolver(s, alice).SendingKey(conv)
	req.NoError(err)
	b, err := NewResolver(s, bob).ReceivingKey(conv, &model.Envelope{SenderID: alice.ID})
	req.NoError(err)
	req.Equal(a, b)

	other := conv.Clone()
	other.ID = "group-2"
	c, err := NewResolver(s, alice).SendingKey(other)
	req.NoError(err)
	req.NotEqual(a, c)

	other.GroupSecret = ""
	_, err = NewResolver(s, alice).SendingKey(other)
	req.True(errors.Is(err, errs.ErrMissingKeyMaterial))
}
