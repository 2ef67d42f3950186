package model

import "github.com/samber/lo"

type ConversationKind string

const (
	KindDM    ConversationKind = "dm"
	KindGroup ConversationKind = "group"
)

type (
	ConversationConfig struct {
		ID           string           `json:"id" bson:"_id" validate:"required"`
		Kind         ConversationKind `json:"type" bson:"type" validate:"required,oneof=dm group"`
		Participants []Participant    `json:"participants" bson:"participants" validate:"dive"`
		GroupSecret  string           `json:"groupSecret,omitempty" bson:"group_secret,omitempty"`
		Admins       []string         `json:"admins,omitempty" bson:"admins,omitempty"`
	}
)

// Peer returns the first participant that is not selfID.
func (c *ConversationConfig) Peer(selfID string) (Participant, bool) {
	return lo.Find(c.Participants, func(p Participant) bool {
		return p.ID != selfID
	})
}

func (c *ConversationConfig) HasAdmin(identityID string) bool {
	return lo.Contains(c.Admins, identityID)
}

func (c *ConversationConfig) Clone() *ConversationConfig {
	cp := *c
	cp.Participants = append([]Participant(nil), c.Participants...)
	if c.Admins != nil {
		cp.Admins = append([]string{}, c.Admins...)
	}
	return &cp
}
