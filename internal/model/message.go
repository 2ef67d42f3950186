package model

import "time"

const (
	EnvelopeVersion = 1
	AlgAES256GCM    = "AES-256-GCM"
)

type MessageKind string

const (
	KindChat   MessageKind = "chat"
	KindRevoke MessageKind = "revoke"
)

type MessageStatus string

const (
	StatusSent     MessageStatus = "sent"
	StatusReceived MessageStatus = "received"
	StatusRevoked  MessageStatus = "revoked"
	StatusDeleted  MessageStatus = "deleted"
)

type (
	EncryptedPayload struct {
		Algorithm      string `json:"alg" validate:"required,eq=AES-256-GCM"`
		Nonce          []byte `json:"iv" validate:"required"`
		Ciphertext     []byte `json:"ciphertext"`
		AuthTag        []byte `json:"tag" validate:"required"`
		AssociatedData []byte `json:"aad"`
	}

	// Envelope is the signed wire message. Field order is the signing order.
	Envelope struct {
		Version                   int               `json:"v"`
		Type                      MessageKind       `json:"type" validate:"required,oneof=chat revoke"`
		ConversationID            string            `json:"conversationId" validate:"required"`
		SenderID                  string            `json:"senderId" validate:"required"`
		SenderSigningPublicKeyPem string            `json:"senderSigningPublicKeyPem" validate:"required"`
		SenderDhPublicKeyPem      string            `json:"senderDhPublicKeyPem" validate:"required"`
		Timestamp                 string            `json:"timestamp" validate:"required"`
		Body                      *EncryptedPayload `json:"body" validate:"required"`
		Signature                 []byte            `json:"signature,omitempty"`
	}

	// DecryptedPayload is the plaintext carried inside an envelope body.
	DecryptedPayload struct {
		Type            MessageKind `json:"type" validate:"required,oneof=chat revoke"`
		Text            string      `json:"text,omitempty"`
		MessageID       string      `json:"messageId,omitempty"`
		TargetMessageID string      `json:"targetMessageId,omitempty" validate:"required_if=Type revoke"`
		AsAdmin         bool        `json:"asAdmin,omitempty"`
	}

	MessageRecord struct {
		ID              string        `json:"id"`
		ConversationID  string        `json:"conversationId"`
		SenderID        string        `json:"senderId"`
		Text            string        `json:"text,omitempty"`
		Kind            MessageKind   `json:"type"`
		TargetMessageID string        `json:"targetMessageId,omitempty"`
		Timestamp       time.Time     `json:"timestamp"`
		Status          MessageStatus `json:"status"`
	}
)

func NewChatPayload(messageID, text string) *DecryptedPayload {
	return &DecryptedPayload{Type: KindChat, Text: text, MessageID: messageID}
}

func NewRevokePayload(messageID, targetMessageID string, asAdmin bool) *DecryptedPayload {
	return &DecryptedPayload{
		Type:            KindRevoke,
		MessageID:       messageID,
		TargetMessageID: targetMessageID,
		AsAdmin:         asAdmin,
	}
}

func (r *MessageRecord) Clone() *MessageRecord {
	cp := *r
	return &cp
}
