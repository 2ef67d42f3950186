package conversation

import (
	"testing"

	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"

	"github.com/stretchr/testify/require"
)

func participant(id string) model.Participant {
	return model.Participant{
		ID:                  id,
		SigningPublicKeyPem: "sig-" + id,
		DhPublicKeyPem:      "dh-" + id,
	}
}

func TestDMID_IsCanonical(t *testing.T) {
	req := require.New(t)
	req.Equal("dm:A:B", DMID("A", "B"))
	req.Equal("dm:A:B", DMID("B", "A"))
	req.Equal(DMID("A", "B"), NewDM(participant("B"), participant("A")).ID)
}

func TestRegistry_JoinGetLeave(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	dm := NewDM(participant("A"), participant("B"))
	req.NoError(r.Join(dm))

	got, err := r.Get(dm.ID)
	req.NoError(err)
	req.Equal(dm, got)

	req.True(r.Leave(dm.ID))
	req.False(r.Leave(dm.ID))

	_, err = r.Get(dm.ID)
	req.ErrorIs(err, errs.ErrConversationNotFound)
}

func TestRegistry_JoinReplaces(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	req.NoError(r.Join(NewGroup("group-1", "s3cret", nil, participant("A"))))
	req.False(r.IsAdmin("group-1", "C"))

	req.NoError(r.Join(NewGroup("group-1", "s3cret", []string{"C"}, participant("A"))))
	req.True(r.IsAdmin("group-1", "C"))
	req.Len(r.List(), 1)
}

func TestRegistry_GroupAdminsNeverNil(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	cfg := &model.ConversationConfig{ID: "g", Kind: model.KindGroup, GroupSecret: "x"}
	req.NoError(r.Join(cfg))

	got, err := r.Get("g")
	req.NoError(err)
	req.NotNil(got.Admins)
	req.Empty(got.Admins)
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	req.NoError(r.Join(NewGroup("g", "x", []string{"C"})))

	got, err := r.Get("g")
	req.NoError(err)
	got.Admins[0] = "mallory"

	req.True(r.IsAdmin("g", "C"))
	req.False(r.IsAdmin("g", "mallory"))
}

func TestRegistry_ValidateRejects(t *testing.T) {
	r := NewRegistry()

	testCases := []struct {
		name string
		cfg  *model.ConversationConfig
		err  error
	}{
		{
			name: "dm with one participant",
			cfg:  &model.ConversationConfig{ID: "dm:A", Kind: model.KindDM, Participants: []model.Participant{participant("A")}},
			err:  errs.ErrInvalidConversation,
		},
		{
			name: "dm with itself",
			cfg:  &model.ConversationConfig{ID: "dm:A:A", Kind: model.KindDM, Participants: []model.Participant{participant("A"), participant("A")}},
			err:  errs.ErrInvalidConversation,
		},
		{
			name: "dm with admins",
			cfg: &model.ConversationConfig{
				ID: "dm:A:B", Kind: model.KindDM,
				Participants: []model.Participant{participant("A"), participant("B")},
				Admins:       []string{"A"},
			},
			err: errs.ErrInvalidConversation,
		},
		{
			name: "group without secret",
			cfg:  NewGroup("g", "", nil),
			err:  errs.ErrMissingKeyMaterial,
		},
		{
			name: "unknown kind",
			cfg:  &model.ConversationConfig{ID: "x", Kind: "channel"},
			err:  errs.ErrInvalidConversation,
		},
		{
			name: "missing id",
			cfg:  NewGroup("", "x", nil),
			err:  errs.ErrInvalidConversation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			req.ErrorIs(r.Join(tc.cfg), tc.err)
		})
	}
}
