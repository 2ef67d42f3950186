// Package chat is the conversation client: it owns the local registry,
// message log and revocation state, and moves envelopes between them and a
// transport.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mini_chat/internal/conversation"
	"mini_chat/internal/cryptographic/suite"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/message"
	"mini_chat/internal/model"
	"mini_chat/internal/protocol/envelope"
	"mini_chat/internal/protocol/revocation"
	"mini_chat/internal/transport"
	"mini_chat/internal/utils/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	// MessageHandler receives records produced by inbound envelopes. It runs
	// on the transport's delivery goroutine.
	MessageHandler func(rec *model.MessageRecord)

	Client struct {
		transport transport.Transport
		identity  *model.Identity
		codec     *envelope.Codec
		registry  *conversation.Registry
		store     *message.Store
		machine   *revocation.Machine
		now       func() time.Time

		// mu serialises state transitions. It is never held across
		// transport calls or handler callbacks.
		mu   sync.Mutex
		subs map[string]transport.Unsubscribe
	}

	Option func(*options)

	options struct {
		now        func() time.Time
		revocation []revocation.Option
	}
)

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithPendingLimit bounds revokes waiting for their target.
func WithPendingLimit(n int) Option {
	return func(o *options) {
		o.revocation = append(o.revocation, revocation.WithPendingLimit(n))
	}
}

func WithPendingTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.revocation = append(o.revocation, revocation.WithPendingTTL(ttl))
	}
}

func NewClient(t transport.Transport, s suite.Suite, identity *model.Identity, opts ...Option) *Client {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	registry := conversation.NewRegistry()
	store := message.NewStore()
	return &Client{
		transport: t,
		identity:  identity,
		codec:     envelope.NewCodec(s, identity, envelope.WithClock(o.now)),
		registry:  registry,
		store:     store,
		machine:   revocation.NewMachine(store, registry, append([]revocation.Option{revocation.WithClock(o.now)}, o.revocation...)...),
		now:       o.now,
		subs:      make(map[string]transport.Unsubscribe),
	}
}

func (c *Client) Identity() *model.Identity {
	return c.identity
}

func (c *Client) Start(ctx context.Context) error {
	return c.transport.Start(ctx)
}

// Stop tears down every subscription, then the transport.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]transport.Unsubscribe)
	c.mu.Unlock()

	for id, unsubscribe := range subs {
		if unsubscribe == nil {
			continue
		}
		if err := unsubscribe(ctx); err != nil {
			log.Warn("unsubscribe failed", zap.String("conversation", id), zap.Error(err))
		}
	}
	return c.transport.Stop(ctx)
}

func (c *Client) JoinConversation(cfg *model.ConversationConfig) error {
	return c.registry.Join(cfg)
}

// LeaveConversation forgets the conversation, its messages and its
// buffered revokes, and ends its subscription.
func (c *Client) LeaveConversation(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	unsubscribe := c.subs[conversationID]
	delete(c.subs, conversationID)
	if !c.registry.Leave(conversationID) {
		c.mu.Unlock()
		return fmt.Errorf("leave %s: %w", conversationID, errs.ErrConversationNotFound)
	}
	purged := c.store.PurgeConversation(conversationID)
	pending := c.machine.PurgeConversation(conversationID)
	c.mu.Unlock()

	log.Debug("left conversation", zap.String("conversation", conversationID),
		zap.Int("messages", purged), zap.Int("pending_revokes", pending))

	if unsubscribe != nil {
		return unsubscribe(ctx)
	}
	return nil
}

func (c *Client) Conversations() []*model.ConversationConfig {
	return c.registry.List()
}

func (c *Client) Conversation(conversationID string) (*model.ConversationConfig, error) {
	return c.registry.Get(conversationID)
}

func (c *Client) IsAdmin(conversationID string) bool {
	return c.registry.IsAdmin(conversationID, c.identity.ID)
}

// SendMessage encrypts text for the conversation, publishes it and records
// it locally as sent. Transport errors are returned unchanged.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (string, error) {
	conv, err := c.registry.Get(conversationID)
	if err != nil {
		return "", err
	}

	id := c.newID("msg")
	env, err := c.publish(ctx, conv, model.NewChatPayload(id, text), "")
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec := &model.MessageRecord{
		ID:             id,
		ConversationID: conv.ID,
		SenderID:       c.identity.ID,
		Text:           text,
		Kind:           model.KindChat,
		Timestamp:      parseTimestamp(env.Timestamp, c.now),
		Status:         model.StatusSent,
	}
	c.store.Upsert(rec)
	// A revoke may have overtaken the local store while the send was in flight.
	if _, ok := c.machine.Reconcile(rec); ok {
		log.Debug("own message revoked on send", zap.String("conversation", conv.ID), zap.String("message", id))
	}
	return id, nil
}

// RevokeMessage publishes a revoke for targetMessageID. The caller must own
// the target or be a local admin of the conversation; otherwise
// ErrRevokeNotPermitted is returned and nothing is sent. The local target
// flips to revoked as soon as the revoke is published.
func (c *Client) RevokeMessage(ctx context.Context, conversationID, targetMessageID string) (string, error) {
	conv, err := c.registry.Get(conversationID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	target, known := c.store.Get(targetMessageID)
	c.mu.Unlock()

	isOwner := known &&
		target.Kind == model.KindChat &&
		target.ConversationID == conv.ID &&
		target.SenderID == c.identity.ID
	isAdmin := conv.HasAdmin(c.identity.ID)
	if !isOwner && !isAdmin {
		return "", fmt.Errorf("revoke %s: %w", targetMessageID, errs.ErrRevokeNotPermitted)
	}

	id := c.newID("revoke")
	env, err := c.publish(ctx, conv, model.NewRevokePayload(id, targetMessageID, isAdmin && !isOwner), model.KindRevoke)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Upsert(&model.MessageRecord{
		ID:              id,
		ConversationID:  conv.ID,
		SenderID:        c.identity.ID,
		Kind:            model.KindRevoke,
		TargetMessageID: targetMessageID,
		Timestamp:       parseTimestamp(env.Timestamp, c.now),
		Status:          model.StatusSent,
	})
	if known && target.ConversationID == conv.ID {
		c.store.SetStatus(targetMessageID, model.StatusRevoked)
	}
	return id, nil
}

// DeleteLocalMessage hides a message on this device only. Unknown ids are
// ignored.
func (c *Client) DeleteLocalMessage(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.MarkDeleted(messageID)
}

// Subscribe attaches handler to the conversation's topic. One subscription
// per conversation is allowed.
func (c *Client) Subscribe(ctx context.Context, conversationID string, handler MessageHandler) error {
	if _, err := c.registry.Get(conversationID); err != nil {
		return err
	}

	c.mu.Lock()
	if _, ok := c.subs[conversationID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", conversationID, errs.ErrAlreadySubscribed)
	}
	c.subs[conversationID] = nil
	c.mu.Unlock()

	unsubscribe, err := c.transport.Subscribe(ctx, transport.TopicForConversation(conversationID), c.receiver(conversationID, handler))
	if err != nil {
		c.mu.Lock()
		delete(c.subs, conversationID)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	_, reserved := c.subs[conversationID]
	_, getErr := c.registry.Get(conversationID)
	if reserved && getErr == nil {
		c.subs[conversationID] = unsubscribe
		c.mu.Unlock()
		return nil
	}
	if reserved {
		delete(c.subs, conversationID)
	}
	c.mu.Unlock()

	// Left while subscribing.
	if err := unsubscribe(ctx); err != nil {
		log.Warn("unsubscribe after leave failed", zap.String("conversation", conversationID), zap.Error(err))
	}
	return fmt.Errorf("subscribe %s: %w", conversationID, errs.ErrConversationNotFound)
}

func (c *Client) Message(messageID string) (*model.MessageRecord, bool) {
	return c.store.Get(messageID)
}

func (c *Client) Messages() []*model.MessageRecord {
	return c.store.List()
}

// MessagesForConversation excludes locally deleted records.
func (c *Client) MessagesForConversation(conversationID string) []*model.MessageRecord {
	return c.store.ListForConversation(conversationID)
}

// Restore loads a persisted message log. Records of unknown conversations
// are kept; they surface again once the conversation is joined.
func (c *Client) Restore(records []*model.MessageRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range records {
		c.store.Upsert(rec)
	}
}

// PendingRevokes reports how many revokes wait for their target.
func (c *Client) PendingRevokes() int {
	return len(c.machine.Pending())
}

func (c *Client) publish(ctx context.Context, conv *model.ConversationConfig, payload *model.DecryptedPayload, overrideType model.MessageKind) (*model.Envelope, error) {
	env, err := c.codec.Build(conv, payload, overrideType)
	if err != nil {
		return nil, err
	}
	data, err := c.codec.Marshal(env)
	if err != nil {
		return nil, err
	}

	if _, err := c.transport.Send(ctx, transport.TopicForConversation(conv.ID), data); err != nil {
		return nil, err
	}
	return env, nil
}

func (c *Client) newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, c.now().UnixMilli(), uuid.NewString()[:8])
}

func parseTimestamp(s string, now func() time.Time) time.Time {
	if ts, err := time.Parse(envelope.TimestampLayout, s); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts
	}
	return now().UTC()
}
