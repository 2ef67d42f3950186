//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=mocks/mock_transport.go -package=mocks
package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const topicNamespace = "/waku-mini-chat/1"

type (
	Metadata struct {
		Topic      string
		DeliveryID string
		ReceivedAt time.Time
	}

	Handler func(payload []byte, meta Metadata)

	Unsubscribe func(ctx context.Context) error

	// Transport is an unordered, best-effort publish/subscribe channel.
	// Payloads are opaque bytes.
	Transport interface {
		Start(ctx context.Context) error
		Stop(ctx context.Context) error
		Send(ctx context.Context, topic string, payload []byte) (string, error)
		Subscribe(ctx context.Context, topic string, handler Handler) (Unsubscribe, error)
	}
)

func TopicForConversation(conversationID string) string {
	return fmt.Sprintf("%s/%s/json", topicNamespace, conversationID)
}

// DeliveryID is the content hash used as the delivery id by every transport here.
func DeliveryID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
