package indexer

import (
	"path/filepath"
	"testing"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "checkpoint.json")
	store := NewCheckpointStore(path, true, "mainnet")

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("expected empty checkpoint, got ok=%v err=%v", ok, err)
	}
	if err := store.Save(Checkpoint{ChainID: 1030, LastProcessedBlock: 99, DiscoveredPairs: []string{"0xabc"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	cp, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if cp.LastProcessedBlock != 99 || cp.Network != "mainnet" || len(cp.DiscoveredPairs) != 1 {
		t.Fatalf("checkpoint mismatch: %+v", cp)
	}
}

func TestCheckpointNetworkMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := NewCheckpointStore(path, true, "mainnet").Save(Checkpoint{LastProcessedBlock: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := NewCheckpointStore(path, true, "testnet").Load(); err == nil {
		t.Fatalf("expected network mismatch error")
	}
}

func TestCheckpointDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, false, "mainnet")
	if err := store.Save(Checkpoint{LastProcessedBlock: 5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := NewCheckpointStore(path, true, "mainnet").Load(); ok {
		t.Fatalf("disabled store must not write")
	}
}
