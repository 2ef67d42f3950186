// Package keyagreement resolves the symmetric key of a conversation for the
// sending and the receiving side.
package keyagreement

import (
	"fmt"

	"mini_chat/internal/cryptographic/suite"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"
)

type (
	Resolver struct {
		suite    suite.Suite
		identity *model.Identity
	}
)

func NewResolver(s suite.Suite, identity *model.Identity) *Resolver {
	return &Resolver{
		suite:    s,
		identity: identity,
	}
}

// SendingKey returns the key the local identity encrypts with.
func (r *Resolver) SendingKey(conv *model.ConversationConfig) ([]byte, error) {
	if conv.Kind == model.KindGroup {
		return r.groupKey(conv)
	}

	peer, ok := conv.Peer(r.identity.ID)
	if !ok || peer.DhPublicKeyPem == "" {
		return nil, fmt.Errorf("dm %s has no peer dh key: %w", conv.ID, errs.ErrMissingKeyMaterial)
	}
	return r.suite.DeriveSharedKey(r.identity, peer.DhPublicKeyPem, conv.ID)
}

// ReceivingKey returns the key that opens env. For DMs only the sender's
// public key travels on the wire, so a peer's envelope is opened with the
// embedded key and our own echoed envelope with the configured peer key.
func (r *Resolver) ReceivingKey(conv *model.ConversationConfig, env *model.Envelope) ([]byte, error) {
	if conv.Kind == model.KindGroup {
		return r.groupKey(conv)
	}

	var peerDh string
	peer, hasPeer := conv.Peer(r.identity.ID)
	if env.SenderID == r.identity.ID {
		if hasPeer {
			peerDh = peer.DhPublicKeyPem
		}
	} else {
		peerDh = env.SenderDhPublicKeyPem
		if peerDh == "" && hasPeer {
			peerDh = peer.DhPublicKeyPem
		}
	}

	if peerDh == "" {
		return nil, fmt.Errorf("dm %s has no peer dh key: %w", conv.ID, errs.ErrMissingKeyMaterial)
	}
	return r.suite.DeriveSharedKey(r.identity, peerDh, conv.ID)
}

func (r *Resolver) groupKey(conv *model.ConversationConfig) ([]byte, error) {
	if conv.GroupSecret == "" {
		return nil, fmt.Errorf("group %s has no secret: %w", conv.ID, errs.ErrMissingKeyMaterial)
	}
	return r.suite.DeriveGroupKey(conv.GroupSecret, conv.ID)
}
