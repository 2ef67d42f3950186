package chat

import (
	"mini_chat/internal/model"
	"mini_chat/internal/protocol/revocation"
	"mini_chat/internal/transport"
	"mini_chat/internal/utils/log"

	"go.uber.org/zap"
)

func (c *Client) receiver(conversationID string, handler MessageHandler) transport.Handler {
	return func(payload []byte, meta transport.Metadata) {
		for _, rec := range c.receive(conversationID, payload, meta) {
			c.deliver(handler, rec)
		}
	}
}

// receive runs an inbound payload through parse, verify, decrypt and route.
// Anything that fails a step is dropped.
func (c *Client) receive(conversationID string, data []byte, meta transport.Metadata) []*model.MessageRecord {
	env := c.codec.Parse(data)
	if env == nil {
		log.Debug("drop unparsable envelope", zap.String("delivery", meta.DeliveryID))
		return nil
	}
	if !c.codec.Verify(env) {
		log.Debug("drop envelope with bad signature", zap.String("delivery", meta.DeliveryID), zap.String("sender", env.SenderID))
		return nil
	}
	// Local state already reflects what this identity sent.
	if env.SenderID == c.identity.ID {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conv, err := c.registry.Get(conversationID)
	if err != nil {
		return nil
	}
	payload, err := c.codec.Open(conv, env)
	if err != nil {
		log.Debug("drop undecryptable envelope", zap.String("delivery", meta.DeliveryID), zap.Error(err))
		return nil
	}

	id := payload.MessageID
	if id == "" {
		id = meta.DeliveryID
	}
	if c.store.Has(id) {
		return nil
	}

	rec := &model.MessageRecord{
		ID:             id,
		ConversationID: env.ConversationID,
		SenderID:       env.SenderID,
		Kind:           payload.Type,
		Timestamp:      parseTimestamp(env.Timestamp, c.now),
		Status:         model.StatusReceived,
	}

	switch payload.Type {
	case model.KindChat:
		rec.Text = payload.Text
		c.store.Upsert(rec)
		if updated, ok := c.machine.Reconcile(rec); ok {
			rec = updated
		}
		return []*model.MessageRecord{rec}

	case model.KindRevoke:
		rec.TargetMessageID = payload.TargetMessageID
		res := c.machine.Apply(env, payload)
		log.Debug("revoke processed", zap.String("conversation", conv.ID),
			zap.String("target", payload.TargetMessageID), zap.Stringer("outcome", res.Outcome))
		if res.Outcome == revocation.Rejected {
			return nil
		}
		c.store.Upsert(rec)
		out := []*model.MessageRecord{rec}
		if res.Outcome == revocation.Applied {
			out = append(out, res.Target)
		}
		return out
	}
	return nil
}

// deliver shields the subscription loop from a panicking handler.
func (c *Client) deliver(handler MessageHandler, rec *model.MessageRecord) {
	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("message handler panicked", zap.String("message", rec.ID), zap.Any("panic", r))
		}
	}()
	handler(rec.Clone())
}
