package message

import (
	"testing"
	"time"

	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepo(db)
}

func record(id, conv string, at time.Time) *model.MessageRecord {
	return &model.MessageRecord{
		ID:             id,
		ConversationID: conv,
		SenderID:       "alice",
		Text:           "hi " + id,
		Kind:           model.KindChat,
		Timestamp:      at,
		Status:         model.StatusReceived,
	}
}

func TestRepo_SaveAndList(t *testing.T) {
	req := require.New(t)
	repo := openRepo(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	req.NoError(repo.SaveAll([]*model.MessageRecord{
		record("msg-3", "group-1", at.Add(2*time.Minute)),
		record("msg-1", "group-1", at),
		record("msg-2", "dm:alice:bob", at.Add(time.Minute)),
	}))

	all, err := repo.List()
	req.NoError(err)
	req.Equal([]string{"msg-1", "msg-2", "msg-3"}, ids(all))

	group, err := repo.ListForConversation("group-1")
	req.NoError(err)
	req.Equal([]string{"msg-1", "msg-3"}, ids(group))
}

func TestRepo_SaveOverwritesStatus(t *testing.T) {
	req := require.New(t)
	repo := openRepo(t)
	rec := record("msg-1", "group-1", time.Now().UTC())
	req.NoError(repo.Save(rec))

	rec.Status = model.StatusRevoked
	req.NoError(repo.Save(rec))

	got, err := repo.Get("msg-1")
	req.NoError(err)
	req.Equal(model.StatusRevoked, got.Status)

	all, err := repo.List()
	req.NoError(err)
	req.Len(all, 1)
}

func TestRepo_SaveMovesRecordWhenTimestampChanges(t *testing.T) {
	req := require.New(t)
	repo := openRepo(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := record("msg-1", "group-1", at)
	req.NoError(repo.Save(rec))

	rec.Timestamp = at.Add(time.Hour)
	req.NoError(repo.Save(rec))

	all, err := repo.ListForConversation("group-1")
	req.NoError(err)
	req.Len(all, 1)
	req.True(all[0].Timestamp.Equal(at.Add(time.Hour)))
}

func TestRepo_ConversationPrefixDoesNotOvermatch(t *testing.T) {
	req := require.New(t)
	repo := openRepo(t)
	at := time.Now().UTC()
	req.NoError(repo.SaveAll([]*model.MessageRecord{
		record("msg-1", "dm:a:b", at),
		record("msg-2", "dm:a:b:c", at),
	}))

	got, err := repo.ListForConversation("dm:a:b")
	req.NoError(err)
	req.Equal([]string{"msg-1"}, ids(got))
}

func TestRepo_DeleteConversation(t *testing.T) {
	req := require.New(t)
	repo := openRepo(t)
	at := time.Now().UTC()
	req.NoError(repo.SaveAll([]*model.MessageRecord{
		record("msg-1", "group-1", at),
		record("msg-2", "group-1", at.Add(time.Second)),
		record("msg-3", "group-2", at),
	}))

	n, err := repo.DeleteConversation("group-1")
	req.NoError(err)
	req.Equal(2, n)

	all, err := repo.List()
	req.NoError(err)
	req.Equal([]string{"msg-3"}, ids(all))

	got, err := repo.Get("msg-1")
	req.ErrorIs(err, errs.ErrNotFound)
	req.Nil(got)
}

func ids(recs []*model.MessageRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
