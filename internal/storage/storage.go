package storage

import (
	"context"
	"errors"

	"swappiIndexer/internal/model"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an append-only record already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when an entity has no id.
	ErrInvalidInput = errors.New("invalid input")
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// EntityStore persists derived entities. Get methods return ErrNotFound
// for absent ids; Save methods upsert.
type EntityStore interface {
	GetToken(ctx context.Context, id string) (*model.Token, error)
	SaveToken(ctx context.Context, token *model.Token) error

	GetPair(ctx context.Context, id string) (*model.Pair, error)
	SavePair(ctx context.Context, pair *model.Pair) error

	GetUser(ctx context.Context, id string) (*model.User, error)
	SaveUser(ctx context.Context, user *model.User) error

	GetLiquidityPosition(ctx context.Context, id string) (*model.LiquidityPosition, error)
	SaveLiquidityPosition(ctx context.Context, position *model.LiquidityPosition) error
	// ListLiquidityPositionsByUser returns positions of a user ordered by id.
	ListLiquidityPositionsByUser(ctx context.Context, user string) ([]*model.LiquidityPosition, error)

	// InsertSnapshot appends a snapshot. Returns ErrDuplicateKey if the id exists.
	InsertSnapshot(ctx context.Context, snapshot *model.LiquidityPositionSnapshot) error
	ListSnapshotsByPosition(ctx context.Context, position string) ([]*model.LiquidityPositionSnapshot, error)

	GetBundle(ctx context.Context, id string) (*model.Bundle, error)
	SaveBundle(ctx context.Context, bundle *model.Bundle) error

	GetFactory(ctx context.Context, id string) (*model.Factory, error)
	SaveFactory(ctx context.Context, factory *model.Factory) error
}
