package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/BaSui01/swarmflow/internal/tlsutil"
)

type mongoSnapshot struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoBackend stores one document per snapshot key.
type MongoBackend struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoBackend connects to MongoDB and verifies the connection.
func NewMongoBackend(ctx context.Context, config MongoStoreConfig) (*MongoBackend, error) {
	opts := options.Client().ApplyURI(config.URI)
	if config.Timeout > 0 {
		opts.SetTimeout(config.Timeout)
	}
	if config.TLS {
		// 驱动按主机填充 ServerName
		opts.SetTLSConfig(tlsutil.DefaultTLSConfig())
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoBackend{
		client: client,
		coll:   client.Database(config.Database).Collection(config.Collection),
	}, nil
}

// Get implements Backend.
func (b *MongoBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var doc mongoSnapshot
	err := b.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return doc.Data, nil
}

// Put implements Backend.
func (b *MongoBackend) Put(ctx context.Context, key string, data []byte) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "data", Value: data},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	_, err := b.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: key}}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	return nil
}

// Ping implements Backend.
func (b *MongoBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, nil)
}

// Close implements Backend.
func (b *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}
