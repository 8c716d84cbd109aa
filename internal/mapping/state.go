package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"swappiIndexer/internal/model"
)

// StateStore persists the position of the last applied event.
type StateStore interface {
	Load(ctx context.Context) (model.EventPosition, bool, error)
	Save(ctx context.Context, pos model.EventPosition) error
}

// FileStateStore stores state in a local JSON file.
type FileStateStore struct {
	Path string
}

type stateRecord struct {
	LastBlock    uint64 `json:"last_block"`
	LastLogIndex uint64 `json:"last_log_index"`
	UpdatedAt    string `json:"updated_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (model.EventPosition, bool, error) {
	if s == nil || s.Path == "" {
		return model.EventPosition{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.EventPosition{}, false, nil
		}
		return model.EventPosition{}, false, fmt.Errorf("read state: %w", err)
	}

	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.EventPosition{}, false, fmt.Errorf("parse state: %w", err)
	}
	return model.EventPosition{BlockNumber: rec.LastBlock, LogIndex: rec.LastLogIndex}, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, pos model.EventPosition) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	rec := stateRecord{
		LastBlock:    pos.BlockNumber,
		LastLogIndex: pos.LogIndex,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// write then rename so a crash never leaves a torn file
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// PositionStore is the subset of the postgres store used for state.
type PositionStore interface {
	LoadState(ctx context.Context, name string) (model.EventPosition, bool, error)
	SaveState(ctx context.Context, name string, pos model.EventPosition) error
}

// DBStateStore stores state in the indexer_state table.
type DBStateStore struct {
	Store PositionStore
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (model.EventPosition, bool, error) {
	if s == nil || s.Store == nil {
		return model.EventPosition{}, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, pos model.EventPosition) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, pos)
}
