package conversation

import (
	"context"
	"testing"

	"mini_chat/internal/model"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("list decodes configs", func(mt *mtest.T) {
		req := require.New(mt)
		ns := mt.DB.Name() + ".conversations"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "group-1"},
				{Key: "type", Value: "group"},
				{Key: "group_secret", Value: "s3cret"},
				{Key: "admins", Value: bson.A{"carol"}},
			},
			bson.D{
				{Key: "_id", Value: "dm:a:b"},
				{Key: "type", Value: "dm"},
				{Key: "participants", Value: bson.A{
					bson.D{{Key: "id", Value: "a"}},
					bson.D{{Key: "id", Value: "b"}},
				}},
			},
		))

		got, err := NewRepo(mt.DB).List(context.Background())
		req.NoError(err)
		req.Len(got, 2)
		req.Equal(model.KindGroup, got[0].Kind)
		req.Equal("s3cret", got[0].GroupSecret)
		req.Equal([]string{"carol"}, got[0].Admins)
		req.Equal(model.KindDM, got[1].Kind)
		req.Len(got[1].Participants, 2)
	})

	mt.Run("save upserts", func(mt *mtest.T) {
		req := require.New(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "group-1"}}}},
		))

		err := NewRepo(mt.DB).Save(context.Background(), &model.ConversationConfig{
			ID: "group-1", Kind: model.KindGroup, GroupSecret: "s3cret",
		})
		req.NoError(err)
	})

	mt.Run("delete", func(mt *mtest.T) {
		req := require.New(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		req.NoError(NewRepo(mt.DB).Delete(context.Background(), "group-1"))
	})
}
