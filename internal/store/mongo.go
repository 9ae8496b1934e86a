package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockleague/stockleague/internal/config"
	"github.com/stockleague/stockleague/pkg/models"
)

// MongoStore persists portfolios in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	portfolios *mongo.Collection
}

var _ PortfolioStore = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB and prepares the portfolio collection.
// A unique index on user_id backs the upsert key; username gets its own
// index for leaderboard and profile lookups.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)

	_, err = coll.Indexes().CreateMany(connectCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}

	return &MongoStore{client: client, portfolios: coll}, nil
}

// FindByUsername returns the portfolio saved under a username.
func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*models.Portfolio, error) {
	var p models.Portfolio
	err := s.portfolios.FindOne(ctx, bson.M{"username": username}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find portfolio %q: %w", username, err)
	}
	return &p, nil
}

// Upsert saves a portfolio keyed on its UserID.
func (s *MongoStore) Upsert(ctx context.Context, p models.Portfolio) error {
	_, err := s.portfolios.ReplaceOne(ctx,
		bson.M{"user_id": p.UserID},
		p,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert portfolio %q: %w", p.UserID, err)
	}
	return nil
}

// List returns every saved portfolio in stable username order.
func (s *MongoStore) List(ctx context.Context) ([]models.Portfolio, error) {
	cursor, err := s.portfolios.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Portfolio
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode portfolios: %w", err)
	}
	return out, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
