package identity

import (
	"context"
	"testing"

	"mini_chat/internal/cryptographic/suite"
	errs "mini_chat/internal/errors"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get reports not found when empty", func(mt *mtest.T) {
		req := require.New(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".identities", mtest.FirstBatch))

		got, err := NewRepo(mt.DB).Get(context.Background())
		req.ErrorIs(err, errs.ErrNotFound)
		req.Nil(got)
	})

	mt.Run("get decodes stored identity", func(mt *mtest.T) {
		req := require.New(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".identities", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "abc"},
			{Key: "suite", Value: suite.Curve25519Name},
			{Key: "signing_public_key_pem", Value: "sig-pub"},
			{Key: "dh_public_key_pem", Value: "dh-pub"},
		}))

		got, err := NewRepo(mt.DB).Get(context.Background())
		req.NoError(err)
		req.Equal("abc", got.ID)
		req.Equal("sig-pub", got.SigningPublicKeyPem)
		req.Equal("dh-pub", got.DhPublicKeyPem)
	})

	mt.Run("load or create generates once", func(mt *mtest.T) {
		req := require.New(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, mt.DB.Name()+".identities", mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
		)

		got, err := NewRepo(mt.DB).LoadOrCreate(context.Background(), suite.NewP256())
		req.NoError(err)
		req.Equal(suite.IdentityID(got.SigningPublicKeyPem), got.ID)
		req.Equal(suite.P256Name, got.Suite)
		req.False(got.CreatedAt.IsZero())
	})

	mt.Run("load rejects a suite mismatch", func(mt *mtest.T) {
		req := require.New(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".identities", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "abc"},
			{Key: "suite", Value: suite.Curve25519Name},
		}))

		_, err := NewRepo(mt.DB).LoadOrCreate(context.Background(), suite.NewP256())
		req.Error(err)
	})
}
