package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// Info is the protocol-wide HKDF info string for conversation keys.
	Info    = "waku-mini-chat"
	KeySize = 32
)

func HKDF(secret, salt, info, buffer []byte) (int, error) {
	h := hkdf.New(sha256.New, secret, salt, info)
	return io.ReadFull(h, buffer)
}

// ConversationKey derives a 32-byte symmetric key from secret, salted with
// the conversation id.
func ConversationKey(secret []byte, conversationID string) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := HKDF(secret, []byte(conversationID), []byte(Info), key); err != nil {
		return nil, err
	}
	return key, nil
}
