package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DB wraps the MongoDB client and database. The connection is created once in
// main and shared across requests.
type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

const (
	CollectionLoginCodes = "login_codes"
)

// Connect establishes a pooled MongoDB connection and verifies it with a ping.
func Connect(ctx context.Context, uri, dbName string) (*DB, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(cctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &DB{
		client:   client,
		database: client.Database(dbName),
	}, nil
}

// EnsureIndexes creates the indexes the service relies on. The unique index on
// login codes is what makes duplicate mints an insert error instead of a
// silent collision.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	codes := d.database.Collection(CollectionLoginCodes)
	_, err := codes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "used", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("login_codes indexes: %w", err)
	}
	return nil
}

func (d *DB) Collection(name string) *mongo.Collection {
	return d.database.Collection(name)
}

func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}
