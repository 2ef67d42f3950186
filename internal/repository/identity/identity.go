package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mini_chat/internal/cryptographic/suite"
	errs "mini_chat/internal/errors"
	"mini_chat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type (
	// Repo stores the local identity. A client database holds exactly one.
	Repo struct {
		collection *mongo.Collection
	}
)

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{
		collection: db.Collection("identities"),
	}
}

// Get returns ErrNotFound when no identity was created yet.
func (r *Repo) Get(ctx context.Context) (*model.Identity, error) {
	var identity model.Identity
	err := r.collection.FindOne(ctx, bson.M{}).Decode(&identity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("identity: %w", errs.ErrNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &identity, nil
}

func (r *Repo) Create(ctx context.Context, identity *model.Identity) error {
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, identity)
	return err
}

// LoadOrCreate returns the stored identity or generates one with s.
func (r *Repo) LoadOrCreate(ctx context.Context, s suite.Suite) (*model.Identity, error) {
	identity, err := r.Get(ctx)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if identity != nil {
		if identity.Suite != "" && identity.Suite != s.Name() {
			return nil, fmt.Errorf("stored identity uses suite %s, not %s", identity.Suite, s.Name())
		}
		return identity, nil
	}

	identity, err = s.GenerateIdentity()
	if err != nil {
		return nil, err
	}
	if err := r.Create(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}
