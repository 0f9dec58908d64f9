package model

// SkippedEvent records an event the engine could not apply, with enough
// coordinates for offline backfill or reconciliation.
type SkippedEvent struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	EventName   string `json:"event_name"`
	Reason      string `json:"reason"`
}
