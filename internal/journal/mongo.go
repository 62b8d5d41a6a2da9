package journal

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoOptions configures a MongoJournal.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// ErrMissingMongoURI indicates the Mongo URI is not provided.
var ErrMissingMongoURI = errors.New("mongo URI is required")

// MongoJournal persists entries in a MongoDB collection keyed by seq.
type MongoJournal struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoJournal connects to MongoDB and ensures the seq index exists.
func NewMongoJournal(ctx context.Context, opts MongoOptions) (*MongoJournal, error) {
	if opts.URI == "" {
		return nil, ErrMissingMongoURI
	}
	if opts.Database == "" {
		opts.Database = "blockcred"
	}
	if opts.Collection == "" {
		opts.Collection = "registry_journal"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := client.Database(opts.Database).Collection(opts.Collection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create journal index: %w", err)
	}

	return &MongoJournal{client: client, collection: collection}, nil
}

func (j *MongoJournal) Append(ctx context.Context, entry Entry) error {
	_, err := j.collection.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: seq %d already journaled", ErrOutOfOrder, entry.Seq)
	}
	if err != nil {
		return fmt.Errorf("insert journal entry %d: %w", entry.Seq, err)
	}
	return nil
}

func (j *MongoJournal) Load(ctx context.Context) ([]Entry, error) {
	cursor, err := j.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	for cursor.Next(ctx) {
		var entry Entry
		if err := cursor.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

func (j *MongoJournal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx, readpref.Primary())
}

func (j *MongoJournal) Close(ctx context.Context) error {
	return j.client.Disconnect(ctx)
}
