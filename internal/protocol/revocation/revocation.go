// Package revocation applies revoke instructions to the message store and
// buffers those that arrive before the message they target.
//
// A revoke signed by S against a target owned by O is honoured when S == O,
// when the payload carries the asAdmin claim, or when S is in the locally
// configured admin list of the target's conversation. Admin status is
// advisory: there is no consensus on group membership, and the local list
// may lag the sender's own view, so both sources are accepted.
package revocation

import (
	"sync"
	"time"

	"mini_chat/internal/conversation"
	"mini_chat/internal/message"
	"mini_chat/internal/model"
	"mini_chat/internal/utils/log"

	"go.uber.org/zap"
)

const (
	DefaultPendingLimit = 1024
	DefaultPendingTTL   = 24 * time.Hour
)

type Outcome int

const (
	// Applied moved the target to revoked.
	Applied Outcome = iota + 1
	// AlreadyRevoked is the idempotent no-op on a revoked target.
	AlreadyRevoked
	// Deferred buffered the revoke until its target arrives.
	Deferred
	// Rejected dropped an unauthorised revoke.
	Rejected
	// Suppressed left a locally deleted target untouched.
	Suppressed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyRevoked:
		return "already_revoked"
	case Deferred:
		return "deferred"
	case Rejected:
		return "rejected"
	case Suppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

type (
	PendingRevoke struct {
		TargetMessageID string
		Envelope        *model.Envelope
		MessageID       string
		AsAdmin         bool
		ReceivedAt      time.Time
	}

	Result struct {
		Outcome Outcome
		// Target is the target record after the revoke, when it is known.
		Target *model.MessageRecord
	}

	Machine struct {
		store    *message.Store
		registry *conversation.Registry

		limit int
		ttl   time.Duration
		now   func() time.Time

		mu      sync.Mutex
		pending map[string][]*PendingRevoke
		queue   []*PendingRevoke
	}

	Option func(*Machine)
)

// WithPendingLimit caps buffered revokes; the oldest is evicted first. n <= 0 disables the cap.
func WithPendingLimit(n int) Option {
	return func(m *Machine) {
		m.limit = n
	}
}

// WithPendingTTL expires buffered revokes older than ttl. ttl <= 0 disables expiry.
func WithPendingTTL(ttl time.Duration) Option {
	return func(m *Machine) {
		m.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

func NewMachine(store *message.Store, registry *conversation.Registry, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		registry: registry,
		limit:    DefaultPendingLimit,
		ttl:      DefaultPendingTTL,
		now:      time.Now,
		pending:  make(map[string][]*PendingRevoke),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authorized reports whether senderID may revoke target. conv may be nil
// when the conversation is unknown locally.
func Authorized(conv *model.ConversationConfig, senderID string, target *model.MessageRecord, asAdmin bool) bool {
	ownerRevoke := senderID == target.SenderID
	adminClaim := asAdmin
	adminLocal := conv != nil && conv.HasAdmin(senderID)
	return ownerRevoke || adminClaim || adminLocal
}

// Apply applies a verified revoke, or defers it when the target is unknown.
func (m *Machine) Apply(env *model.Envelope, payload *model.DecryptedPayload) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()

	target, ok := m.store.Get(payload.TargetMessageID)
	if !ok {
		m.deferLocked(&PendingRevoke{
			TargetMessageID: payload.TargetMessageID,
			Envelope:        env,
			MessageID:       payload.MessageID,
			AsAdmin:         payload.AsAdmin,
			ReceivedAt:      m.now(),
		})
		return Result{Outcome: Deferred}
	}
	return m.applyLocked(env.SenderID, env.ConversationID, payload.AsAdmin, target)
}

// Reconcile applies any buffered revoke for a record that was just stored.
// It returns the updated record when the record moved to revoked.
func (m *Machine) Reconcile(rec *model.MessageRecord) (*model.MessageRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()

	entries := m.pending[rec.ID]
	if len(entries) == 0 {
		return nil, false
	}
	m.dropLocked(rec.ID)

	target, ok := m.store.Get(rec.ID)
	if !ok {
		return nil, false
	}
	for _, p := range entries {
		res := m.applyLocked(p.Envelope.SenderID, p.Envelope.ConversationID, p.AsAdmin, target)
		switch res.Outcome {
		case Applied:
			return res.Target, true
		case AlreadyRevoked, Suppressed:
			return nil, false
		}
	}
	return nil, false
}

func (m *Machine) applyLocked(senderID, conversationID string, asAdmin bool, target *model.MessageRecord) Result {
	if target.Status == model.StatusDeleted {
		return Result{Outcome: Suppressed, Target: target}
	}
	if target.Kind != model.KindChat || target.ConversationID != conversationID {
		log.Debug("revoke rejected: target outside conversation",
			zap.String("conversation", conversationID), zap.String("target", target.ID))
		return Result{Outcome: Rejected}
	}

	conv, err := m.registry.Get(target.ConversationID)
	if err != nil {
		conv = nil
	}
	if !Authorized(conv, senderID, target, asAdmin) {
		log.Debug("revoke rejected: sender not authorized",
			zap.String("conversation", conversationID), zap.String("target", target.ID), zap.String("sender", senderID))
		return Result{Outcome: Rejected}
	}

	if target.Status == model.StatusRevoked {
		return Result{Outcome: AlreadyRevoked, Target: target}
	}
	updated, ok := m.store.SetStatus(target.ID, model.StatusRevoked)
	if !ok {
		return Result{Outcome: Suppressed, Target: target}
	}
	return Result{Outcome: Applied, Target: updated}
}

func (m *Machine) deferLocked(p *PendingRevoke) {
	for _, existing := range m.pending[p.TargetMessageID] {
		if p.MessageID != "" && existing.MessageID == p.MessageID {
			return
		}
	}
	if m.limit > 0 {
		for len(m.queue) >= m.limit {
			m.evictOldestLocked()
		}
	}
	m.pending[p.TargetMessageID] = append(m.pending[p.TargetMessageID], p)
	m.queue = append(m.queue, p)
}

func (m *Machine) pruneLocked() {
	if m.ttl <= 0 {
		return
	}
	cutoff := m.now().Add(-m.ttl)
	for len(m.queue) > 0 && !m.queue[0].ReceivedAt.After(cutoff) {
		m.evictOldestLocked()
	}
}

func (m *Machine) evictOldestLocked() {
	oldest := m.queue[0]
	m.queue = m.queue[1:]

	entries := m.pending[oldest.TargetMessageID]
	kept := entries[:0]
	for _, p := range entries {
		if p != oldest {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		delete(m.pending, oldest.TargetMessageID)
	} else {
		m.pending[oldest.TargetMessageID] = kept
	}
	log.Debug("pending revoke evicted", zap.String("target", oldest.TargetMessageID))
}

func (m *Machine) dropLocked(targetID string) {
	delete(m.pending, targetID)
	kept := m.queue[:0]
	for _, p := range m.queue {
		if p.TargetMessageID != targetID {
			kept = append(kept, p)
		}
	}
	m.queue = kept
}

// PurgeConversation drops every buffered revoke received in the conversation.
func (m *Machine) PurgeConversation(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	targets := map[string]struct{}{}
	for _, p := range m.queue {
		if p.Envelope.ConversationID == conversationID {
			targets[p.TargetMessageID] = struct{}{}
		}
	}

	n := 0
	kept := m.queue[:0]
	for _, p := range m.queue {
		if p.Envelope.ConversationID == conversationID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	m.queue = kept

	for target := range targets {
		entries := m.pending[target][:0]
		for _, p := range m.pending[target] {
			if p.Envelope.ConversationID != conversationID {
				entries = append(entries, p)
			}
		}
		if len(entries) == 0 {
			delete(m.pending, target)
		} else {
			m.pending[target] = entries
		}
	}
	return n
}

// Pending returns the buffered revokes, oldest first.
func (m *Machine) Pending() []PendingRevoke {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	out := make([]PendingRevoke, 0, len(m.queue))
	for _, p := range m.queue {
		out = append(out, *p)
	}
	return out
}
