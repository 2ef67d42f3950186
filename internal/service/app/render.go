package app

import (
	"fmt"
	"strings"

	"mini_chat/internal/model"

	"github.com/rivo/tview"
)

const (
	CommandSend   = "send"
	CommandRevoke = "revoke"
	CommandDelete = "delete"
)

type Command struct {
	Name string
	Arg  string
}

// ParseCommand maps "/revoke <id>" and "/delete <id>" to commands. Anything
// else, including unknown slash commands, is a message.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	for _, name := range []string{CommandRevoke, CommandDelete} {
		prefix := "/" + name + " "
		if strings.HasPrefix(line, prefix) {
			if arg := strings.TrimSpace(strings.TrimPrefix(line, prefix)); arg != "" {
				return Command{Name: name, Arg: arg}
			}
		}
	}
	return Command{Name: CommandSend, Arg: line}
}

func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func Title(conv *model.ConversationConfig, selfID string) string {
	if conv.Kind == model.KindDM {
		if peer, ok := conv.Peer(selfID); ok {
			return "DM with " + ShortID(peer.ID)
		}
	}
	return conv.ID
}

// Render formats a conversation log for a tview TextView with dynamic colors.
// Revoke tombstones are folded into their targets.
func Render(recs []*model.MessageRecord, selfID string) string {
	var b strings.Builder
	for _, rec := range recs {
		if rec.Kind == model.KindRevoke {
			continue
		}

		who := "[green]" + ShortID(rec.SenderID) + ":[-]"
		if rec.SenderID == selfID {
			who = "[yellow]You:[-]"
		}

		switch rec.Status {
		case model.StatusRevoked:
			fmt.Fprintf(&b, "%s [gray]message revoked[-]\n", who)
		default:
			fmt.Fprintf(&b, "%s %s [gray](%s)[-]\n", who, tview.Escape(rec.Text), rec.ID)
		}
	}
	return b.String()
}
