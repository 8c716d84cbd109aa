package model

import "encoding/json"

// TypedEventRecord is the JSON form of a TypedEvent read back by the applier.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}

// Position orders records by block and log index.
func (r TypedEventRecord) Position() EventPosition {
	return EventPosition{BlockNumber: r.BlockNumber, LogIndex: r.LogIndex}
}

// EventPosition identifies a log within the canonical chain order.
type EventPosition struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
}

// After reports whether p comes strictly after other.
func (p EventPosition) After(other EventPosition) bool {
	if p.BlockNumber != other.BlockNumber {
		return p.BlockNumber > other.BlockNumber
	}
	return p.LogIndex > other.LogIndex
}
