package model

// DecodeError records a rejected notification for the rejects stream.
type DecodeError struct {
	Emitter     string `json:"emitter"`
	TxID        string `json:"tx_id"`
	EventIndex  uint64 `json:"event_index"`
	BlockHeight uint64 `json:"block_height"`
	Error       string `json:"error"`
}
