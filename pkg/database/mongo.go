package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoURI build a mongodb connect string, credentials are optional
func MongoURI(user, password, host string, port int) string {
	if user == "" {
		return fmt.Sprintf("mongodb://%s:%d", host, port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d", user, password, host, port)
}

// NewMongoDB connect and ping the primary, retrying per d.Retry
func NewMongoDB(ctx context.Context, d DSN, dbName string) (*MongoDB, error) {
	clientOpts := options.Client().ApplyURI(d.URI)

	return dialWithRetry(ctx, "mongo", d.Retry, func(ctx context.Context) (*MongoDB, error) {
		client, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &MongoDB{Client: client, Database: client.Database(dbName)}, nil
	})
}

// Close disconnect mongoDB
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
