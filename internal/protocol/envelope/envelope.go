// Package envelope builds and opens the signed, AEAD-encrypted wire messages.
//
// The signature covers the JSON encoding of every envelope field except
// the signature itself. encoding/json emits struct fields in declaration
// order, so the encoding is a pure function of the field values and sender
// and verifier compute identical bytes.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mini_chat/internal/cryptographic/suite"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"
	"mini_chat/internal/protocol/keyagreement"

	"github.com/go-playground/validator/v10"
)

// TimestampLayout is ISO-8601 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type (
	Codec struct {
		suite    suite.Suite
		identity *model.Identity
		keys     *keyagreement.Resolver
		validate *validator.Validate
		now      func() time.Time
	}

	Option func(*Codec)
)

func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(s suite.Suite, identity *model.Identity, opts ...Option) *Codec {
	c := &Codec{
		suite:    s,
		identity: identity,
		keys:     keyagreement.NewResolver(s, identity),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build encrypts payload for conv and signs the resulting envelope.
// overrideType, when non-empty, replaces the payload type on the envelope.
func (c *Codec) Build(conv *model.ConversationConfig, payload *model.DecryptedPayload, overrideType model.MessageKind) (*model.Envelope, error) {
	key, err := c.keys.SendingKey(conv)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	aad := associatedData(conv.ID, c.identity.ID, now)

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	body, err := c.suite.Encrypt(plaintext, key, aad)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	msgType := payload.Type
	if overrideType != "" {
		msgType = overrideType
	}

	env := &model.Envelope{
		Version:                   model.EnvelopeVersion,
		Type:                      msgType,
		ConversationID:            conv.ID,
		SenderID:                  c.identity.ID,
		SenderSigningPublicKeyPem: c.identity.SigningPublicKeyPem,
		SenderDhPublicKeyPem:      c.identity.DhPublicKeyPem,
		Timestamp:                 now.Format(TimestampLayout),
		Body:                      body,
	}

	signable, err := SignableBytes(env)
	if err != nil {
		return nil, err
	}
	env.Signature, err = c.suite.Sign(signable, c.identity)
	if err != nil {
		return nil, fmt.Errorf("sign envelope: %w", err)
	}
	return env, nil
}

func (c *Codec) Marshal(env *model.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Parse returns nil for malformed JSON, an unsupported version or missing fields.
func (c *Codec) Parse(data []byte) *model.Envelope {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	if env.Version != model.EnvelopeVersion {
		return nil
	}
	if err := c.validate.Struct(&env); err != nil {
		return nil
	}
	return &env
}

// Verify checks the signature against the embedded signing key, and that
// the claimed sender id is the one derived from that key.
func (c *Codec) Verify(env *model.Envelope) bool {
	if env == nil || len(env.Signature) == 0 {
		return false
	}
	if env.SenderID != suite.IdentityID(env.SenderSigningPublicKeyPem) {
		return false
	}
	signable, err := SignableBytes(env)
	if err != nil {
		return false
	}
	return c.suite.Verify(signable, env.Signature, env.SenderSigningPublicKeyPem)
}

// Decrypt returns nil on any failure.
func (c *Codec) Decrypt(conv *model.ConversationConfig, env *model.Envelope) *model.DecryptedPayload {
	payload, err := c.Open(conv, env)
	if err != nil {
		return nil
	}
	return payload
}

// Open is Decrypt with the failure reason.
func (c *Codec) Open(conv *model.ConversationConfig, env *model.Envelope) (*model.DecryptedPayload, error) {
	if env.ConversationID != conv.ID {
		return nil, fmt.Errorf("envelope for %s delivered to %s: %w", env.ConversationID, conv.ID, errs.ErrDecryption)
	}
	if !strings.HasPrefix(string(env.Body.AssociatedData), conv.ID+":"+env.SenderID+":") {
		return nil, fmt.Errorf("associated data does not bind sender: %w", errs.ErrDecryption)
	}

	key, err := c.keys.ReceivingKey(conv, env)
	if err != nil {
		return nil, err
	}

	plaintext, err := c.suite.Decrypt(env.Body, key)
	if err != nil {
		return nil, err
	}

	var payload model.DecryptedPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %v: %w", err, errs.ErrDecryption)
	}
	if err := c.validate.Struct(&payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %v: %w", err, errs.ErrDecryption)
	}
	return &payload, nil
}

// SignableBytes is the serialization covered by the envelope signature.
func SignableBytes(env *model.Envelope) ([]byte, error) {
	unsigned := *env
	unsigned.Signature = nil
	data, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

func associatedData(conversationID, senderID string, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", conversationID, senderID, at.UnixMilli()))
}
