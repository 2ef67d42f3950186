package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"mini_chat/internal/config"
	"mini_chat/internal/conversation"
	"mini_chat/internal/model"
	"mini_chat/internal/service/app"
	"mini_chat/internal/utils/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "minichat",
		Short:         "End-to-end encrypted chat over an untrusted pub/sub relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			// The chat window owns the terminal.
			if cmd.Name() == "chat" {
				if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
					return err
				}
				return log.Init(cfg.LogLevel, filepath.Join(cfg.DataDir, "minichat.log"))
			}
			return log.Init(cfg.LogLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}

	// withSession opens the stores for one subcommand and closes them after.
	withSession := func(fn func(ctx context.Context, s *session, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))
			return fn(ctx, s, cmd)
		}
	}

	cmd.AddCommand(
		newInitCommand(withSession),
		newExportIdentityCommand(withSession),
		newCreateDMCommand(withSession),
		newJoinGroupCommand(withSession),
		newLeaveCommand(withSession),
		newSendCommand(withSession),
		newRevokeCommand(withSession),
		newDeleteCommand(withSession),
		newListenCommand(withSession),
		newChatCommand(withSession),
	)
	return cmd
}

type sessionRunner func(fn func(ctx context.Context, s *session, cmd *cobra.Command) error) func(*cobra.Command, []string) error

func newInitCommand(run sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local identity if it does not exist",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			identity, err := s.identities.LoadOrCreate(ctx, s.suite)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), identity.ID)
			return nil
		}),
	}
}

func newExportIdentityCommand(run sessionRunner) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-identity",
		Short: "Write the public identity to share with peers",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			identity, err := s.identity(ctx)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(identity.Participant(), "", "  ")
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(out, data, 0o644)
		}),
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func readParticipant(path string) (model.Participant, error) {
	var p model.Participant
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return p, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return p, fmt.Errorf("read participant %s: %w", path, err)
	}
	return p, nil
}

func newCreateDMCommand(run sessionRunner) *cobra.Command {
	var peerFile string
	cmd := &cobra.Command{
		Use:   "create-dm",
		Short: "Create a direct conversation with a peer's exported identity",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			client, err := s.loadClient(ctx, false)
			if err != nil {
				return err
			}
			peer, err := readParticipant(peerFile)
			if err != nil {
				return err
			}

			conv := conversation.NewDM(client.Identity().Participant(), peer)
			if err := client.JoinConversation(conv); err != nil {
				return err
			}
			if err := s.conversations.Save(ctx, conv); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), conv.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&peerFile, "peer", "", "peer identity file from export-identity")
	_ = cmd.MarkFlagRequired("peer")
	return cmd
}

func newJoinGroupCommand(run sessionRunner) *cobra.Command {
	var (
		id, secret     string
		admins, member []string
	)
	cmd := &cobra.Command{
		Use:   "join-group",
		Short: "Join a group conversation secured by a shared secret",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			client, err := s.loadClient(ctx, false)
			if err != nil {
				return err
			}

			members := []model.Participant{client.Identity().Participant()}
			for _, path := range member {
				p, err := readParticipant(path)
				if err != nil {
					return err
				}
				members = append(members, p)
			}

			conv := conversation.NewGroup(id, secret, admins, members...)
			if err := client.JoinConversation(conv); err != nil {
				return err
			}
			return s.conversations.Save(ctx, conv)
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "group id")
	cmd.Flags().StringVar(&secret, "secret", "", "shared group secret")
	cmd.Flags().StringSliceVar(&admins, "admin", nil, "admin identity id (repeatable)")
	cmd.Flags().StringSliceVar(&member, "member", nil, "member identity file (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func newLeaveCommand(run sessionRunner) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Leave a conversation and forget its messages",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			client, err := s.loadClient(ctx, false)
			if err != nil {
				return err
			}
			if err := client.LeaveConversation(ctx, conversationID); err != nil {
				return err
			}
			if _, err := s.messages.DeleteConversation(conversationID); err != nil {
				return err
			}
			return s.conversations.Delete(ctx, conversationID)
		}),
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}

func newSendCommand(run sessionRunner) *cobra.Command {
	var conversationID, text string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			client, err := s.loadClient(ctx, true)
			if err != nil {
				return err
			}
			id, err := client.SendMessage(ctx, conversationID, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return s.persist(id)
		}),
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newRevokeCommand(run sessionRunner) *cobra.Command {
	var conversationID, messageID string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a message for every member",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			client, err := s.loadClient(ctx, true)
			if err != nil {
				return err
			}
			id, err := client.RevokeMessage(ctx, conversationID, messageID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return s.persist(id, messageID)
		}),
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
	cmd.Flags().StringVar(&messageID, "message-id", "", "message to revoke")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("message-id")
	return cmd
}

func newDeleteCommand(run sessionRunner) *cobra.Command {
	var messageID string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Hide a message on this device only",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			client, err := s.loadClient(ctx, false)
			if err != nil {
				return err
			}
			client.DeleteLocalMessage(messageID)
			return s.persist(messageID)
		}),
	}
	cmd.Flags().StringVar(&messageID, "message-id", "", "message to delete")
	_ = cmd.MarkFlagRequired("message-id")
	return cmd
}

func newListenCommand(run sessionRunner) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print incoming records as JSON lines until interrupted",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			client, err := s.loadClient(ctx, true)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = client.Subscribe(ctx, conversationID, func(rec *model.MessageRecord) {
				if err := s.messages.Save(rec); err != nil {
					log.Error("persist message failed", zap.String("message", rec.ID), zap.Error(err))
				}
				_ = enc.Encode(rec)
			})
			if err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		}),
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}

func newChatCommand(run sessionRunner) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat window",
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command) error {
			client, err := s.loadClient(ctx, true)
			if err != nil {
				return err
			}

			a := app.NewApp(client, s.messages)
			go func() {
				<-ctx.Done()
				a.Stop()
			}()
			return a.Run(ctx, conversationID)
		}),
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}
