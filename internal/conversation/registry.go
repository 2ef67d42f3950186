// Package conversation holds the configuration of every joined conversation.
package conversation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const dmPrefix = "dm"

type (
	Registry struct {
		mu            sync.RWMutex
		conversations map[string]*model.ConversationConfig
		validate      *validator.Validate
	}
)

func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[string]*model.ConversationConfig),
		validate:      validator.New(),
	}
}

// DMID is the canonical id of the DM between two identities.
func DMID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(append([]string{dmPrefix}, ids...), ":")
}

func NewDM(self, peer model.Participant) *model.ConversationConfig {
	return &model.ConversationConfig{
		ID:           DMID(self.ID, peer.ID),
		Kind:         model.KindDM,
		Participants: []model.Participant{self, peer},
	}
}

func NewGroup(id, secret string, admins []string, members ...model.Participant) *model.ConversationConfig {
	return &model.ConversationConfig{
		ID:           id,
		Kind:         model.KindGroup,
		Participants: members,
		GroupSecret:  secret,
		Admins:       append([]string{}, admins...),
	}
}

// Validate enforces the per-kind invariants: a DM has exactly two distinct
// participants and no admins, a group has a secret.
func (r *Registry) Validate(cfg *model.ConversationConfig) error {
	if err := r.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%v: %w", err, errs.ErrInvalidConversation)
	}

	switch cfg.Kind {
	case model.KindDM:
		if len(cfg.Participants) != 2 {
			return fmt.Errorf("dm needs 2 participants, got %d: %w", len(cfg.Participants), errs.ErrInvalidConversation)
		}
		if cfg.Participants[0].ID == cfg.Participants[1].ID {
			return fmt.Errorf("dm participants must differ: %w", errs.ErrInvalidConversation)
		}
		if len(cfg.Admins) > 0 {
			return fmt.Errorf("dm cannot have admins: %w", errs.ErrInvalidConversation)
		}
	case model.KindGroup:
		if cfg.GroupSecret == "" {
			return fmt.Errorf("group %s: %w", cfg.ID, errs.ErrMissingKeyMaterial)
		}
	}
	return nil
}

// Join inserts or replaces cfg.
func (r *Registry) Join(cfg *model.ConversationConfig) error {
	if err := r.Validate(cfg); err != nil {
		return err
	}

	stored := cfg.Clone()
	if stored.Kind == model.KindGroup && stored.Admins == nil {
		stored.Admins = []string{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[stored.ID] = stored
	return nil
}

// Leave removes the conversation and reports whether it was present.
func (r *Registry) Leave(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conversations[id]
	delete(r.conversations, id)
	return ok
}

func (r *Registry) Get(id string) (*model.ConversationConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, errs.ErrConversationNotFound)
	}
	return cfg.Clone(), nil
}

func (r *Registry) IsAdmin(id, identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.conversations[id]
	if !ok {
		return false
	}
	return cfg.HasAdmin(identityID)
}

// List returns every conversation ordered by id.
func (r *Registry) List() []*model.ConversationConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := lo.MapToSlice(r.conversations, func(_ string, cfg *model.ConversationConfig) *model.ConversationConfig {
		return cfg.Clone()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
