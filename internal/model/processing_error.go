package model

// ProcessingError records a log or event that could not be decoded or applied.
type ProcessingError struct {
	Stage       string `json:"stage"`
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0,omitempty"`
	EventName   string `json:"event_name,omitempty"`
	Error       string `json:"error"`
}

const (
	StageDecode = "decode"
	StageApply  = "apply"
)
