package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"swappiIndexer/internal/model"
	"swappiIndexer/internal/storage"
)

// EntityStore is an in-memory implementation of storage.EntityStore.
// Entities are copied on the way in and out.
type EntityStore struct {
	mu        sync.RWMutex
	tokens    map[string]model.Token
	pairs     map[string]model.Pair
	users     map[string]model.User
	positions map[string]model.LiquidityPosition
	snapshots map[string]model.LiquidityPositionSnapshot
	bundles   map[string]model.Bundle
	factories map[string]model.Factory
}

// Compile-time interface check.
var _ storage.EntityStore = (*EntityStore)(nil)

// NewEntityStore creates an empty store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		tokens:    make(map[string]model.Token),
		pairs:     make(map[string]model.Pair),
		users:     make(map[string]model.User),
		positions: make(map[string]model.LiquidityPosition),
		snapshots: make(map[string]model.LiquidityPositionSnapshot),
		bundles:   make(map[string]model.Bundle),
		factories: make(map[string]model.Factory),
	}
}

func (s *EntityStore) GetToken(_ context.Context, id string) (*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyToken(token), nil
}

func (s *EntityStore) SaveToken(_ context.Context, token *model.Token) error {
	if token == nil || token.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = *copyToken(*token)
	return nil
}

func (s *EntityStore) GetPair(_ context.Context, id string) (*model.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pair, ok := s.pairs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &pair, nil
}

func (s *EntityStore) SavePair(_ context.Context, pair *model.Pair) error {
	if pair == nil || pair.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[pair.ID] = *pair
	return nil
}

func (s *EntityStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &user, nil
}

func (s *EntityStore) SaveUser(_ context.Context, user *model.User) error {
	if user == nil || user.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *EntityStore) GetLiquidityPosition(_ context.Context, id string) (*model.LiquidityPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	position, ok := s.positions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &position, nil
}

func (s *EntityStore) SaveLiquidityPosition(_ context.Context, position *model.LiquidityPosition) error {
	if position == nil || position.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[position.ID] = *position
	return nil
}

func (s *EntityStore) ListLiquidityPositionsByUser(_ context.Context, user string) ([]*model.LiquidityPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.LiquidityPosition
	for _, position := range s.positions {
		if position.User == user {
			positionCopy := position
			result = append(result, &positionCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *EntityStore) InsertSnapshot(_ context.Context, snapshot *model.LiquidityPositionSnapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[snapshot.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.snapshots[snapshot.ID] = *snapshot
	return nil
}

func (s *EntityStore) ListSnapshotsByPosition(_ context.Context, position string) ([]*model.LiquidityPositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.LiquidityPositionSnapshot
	for _, snapshot := range s.snapshots {
		if snapshot.LiquidityPosition == position {
			snapshotCopy := snapshot
			result = append(result, &snapshotCopy)
		}
	}
	// Sort by timestamp ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *EntityStore) GetBundle(_ context.Context, id string) (*model.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bundle, ok := s.bundles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &bundle, nil
}

func (s *EntityStore) SaveBundle(_ context.Context, bundle *model.Bundle) error {
	if bundle == nil || bundle.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[bundle.ID] = *bundle
	return nil
}

func (s *EntityStore) GetFactory(_ context.Context, id string) (*model.Factory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	factory, ok := s.factories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &factory, nil
}

func (s *EntityStore) SaveFactory(_ context.Context, factory *model.Factory) error {
	if factory == nil || factory.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[factory.ID] = *factory
	return nil
}

func copyToken(token model.Token) *model.Token {
	if token.TotalSupply != nil {
		token.TotalSupply = new(big.Int).Set(token.TotalSupply)
	}
	return &token
}
