package model

import (
	"encoding/json"
)

// EventEnvelope is one message from the node event feed.
type EventEnvelope struct {
	Type          string         `json:"type"`
	ContractEvent *ContractEvent `json:"contract_event,omitempty"`
}

// ContractEvent is the normalized representation of a ledger contract event.
// Value carries the structured print output as the node delivered it.
type ContractEvent struct {
	ContractID  string          `json:"contract_identifier"`
	Topic       string          `json:"topic"`
	TxID        string          `json:"tx_id"`
	EventIndex  uint64          `json:"event_index"`
	BlockHeight uint64          `json:"block_height"`
	Value       json.RawMessage `json:"value"`
}

// MarshalJSON ensures ContractEvent is encoded with stable field names.
func (e ContractEvent) MarshalJSON() ([]byte, error) {
	type Alias ContractEvent
	return json.Marshal(Alias(e))
}

// UnmarshalJSON decodes a ContractEvent from JSON.
func (e *ContractEvent) UnmarshalJSON(data []byte) error {
	type Alias ContractEvent
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = ContractEvent(a)
	return nil
}
