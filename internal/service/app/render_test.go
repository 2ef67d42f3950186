package app

import (
	"testing"
	"time"

	"mini_chat/internal/model"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	for line, want := range map[string]Command{
		"hello":                {Name: CommandSend, Arg: "hello"},
		"  /revoke msg-1-abc ": {Name: CommandRevoke, Arg: "msg-1-abc"},
		"/delete msg-2":        {Name: CommandDelete, Arg: "msg-2"},
		"/revoke ":             {Name: CommandSend, Arg: "/revoke"},
		"/shrug":               {Name: CommandSend, Arg: "/shrug"},
	} {
		require.Equal(t, want, ParseCommand(line), line)
	}
}

func TestRender(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recs := []*model.MessageRecord{
		{ID: "msg-1", SenderID: "self", Text: "hi [red]there", Kind: model.KindChat, Timestamp: at, Status: model.StatusSent},
		{ID: "msg-2", SenderID: "0123456789abcdef", Text: "yo", Kind: model.KindChat, Timestamp: at, Status: model.StatusReceived},
		{ID: "msg-3", SenderID: "0123456789abcdef", Text: "secret", Kind: model.KindChat, Timestamp: at, Status: model.StatusRevoked},
		{ID: "revoke-1", SenderID: "0123456789abcdef", Kind: model.KindRevoke, TargetMessageID: "msg-3", Timestamp: at, Status: model.StatusReceived},
	}

	out := Render(recs, "self")
	req.Equal(
		"[yellow]You:[-] hi [red[]there [gray](msg-1)[-]\n"+
			"[green]01234567:[-] yo [gray](msg-2)[-]\n"+
			"[green]01234567:[-] [gray]message revoked[-]\n",
		out)
	req.NotContains(out, "secret")
}

func TestTitle(t *testing.T) {
	req := require.New(t)
	dm := &model.ConversationConfig{
		ID:   "dm:aaaaaaaaaa:bbbbbbbbbb",
		Kind: model.KindDM,
		Participants: []model.Participant{
			{ID: "aaaaaaaaaa"}, {ID: "bbbbbbbbbb"},
		},
	}
	req.Equal("DM with bbbbbbbb", Title(dm, "aaaaaaaaaa"))
	req.Equal("group-1", Title(&model.ConversationConfig{ID: "group-1", Kind: model.KindGroup}, "x"))
}
