package model

// TokenClass identifies which token standard a contract implements.
type TokenClass string

const (
	TokenClassFT  TokenClass = "ft"
	TokenClassNFT TokenClass = "nft"
	TokenClassSFT TokenClass = "sft"
)

// Valid reports whether the class is one of the known values.
func (c TokenClass) Valid() bool {
	switch c {
	case TokenClassFT, TokenClassNFT, TokenClassSFT:
		return true
	default:
		return false
	}
}

// RefreshTask instructs a downstream indexer to re-fetch metadata for a
// contract. TokenIDs is set only for nft notifications that name specific
// tokens; an empty TokenIDs means every token of the contract.
type RefreshTask struct {
	ContractID  string     `json:"contract_id"`
	TokenClass  TokenClass `json:"token_class"`
	TokenIDs    []uint64   `json:"token_ids,omitempty"`
	Emitter     string     `json:"emitter"`
	TxID        string     `json:"tx_id"`
	EventIndex  uint64     `json:"event_index"`
	BlockHeight uint64     `json:"block_height"`
	ObservedAt  string     `json:"observed_at"`
}
