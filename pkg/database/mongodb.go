package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	Config   *DatabaseConfig
}

type DatabaseConfig struct {
	URI            string
	Database       string
	MaxPoolSize    int
	MinPoolSize    int
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
}

func NewMongoDB(config *DatabaseConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	// Create client options
	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(uint64(config.MaxPoolSize)).
		SetMinPoolSize(uint64(config.MinPoolSize)).
		SetSocketTimeout(config.SocketTimeout).
		SetConnectTimeout(config.ConnectTimeout)

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the database
	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		return nil, err
	}

	database := client.Database(config.Database)

	return &MongoDB{
		Client:   client,
		Database: database,
		Config:   config,
	}, nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.Database.Collection(name)
}

func (m *MongoDB) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) CreateTransaction() (mongo.Session, error) {
	return m.Client.StartSession()
}

func (m *MongoDB) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	session, err := m.CreateTransaction()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	return session.WithTransaction(ctx, fn)
}

// Run executes fn inside a multi-document transaction. Repository methods
// called with the transaction context participate in it automatically.
func (m *MongoDB) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := m.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// IsTransientError reports whether a transaction failed on a conflict that a
// bounded retry may resolve.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorLabel("TransientTransactionError") ||
			cmdErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		return we.HasErrorLabel("TransientTransactionError")
	}
	return false
}
