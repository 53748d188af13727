package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"metadataWatch/internal/model"
)

const (
	// PrintTopic is the only contract-event topic that carries notifications.
	PrintTopic = "print"

	// NotificationTag identifies a token-metadata-update notification.
	NotificationTag = "token-metadata-update"

	// MaxTokenIDs bounds the token-ids sequence of an nft notification.
	MaxTokenIDs = 100
)

// Config configures decoder behavior.
type Config struct {
	// TrustPayload skips the cross-check of the payload contract-id against
	// the emitting contract. Off by default: a notification naming a contract
	// that the emitter does not control is rejected.
	TrustPayload bool
}

// Decoder turns contract events into refresh tasks. It is stateless; the
// same event always yields the same result.
type Decoder struct {
	trustPayload bool
}

// NewDecoder builds a Decoder.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{trustPayload: cfg.TrustPayload}
}

type envelope struct {
	Notification *string         `json:"notification"`
	Payload      json.RawMessage `json:"payload"`
}

type payload struct {
	TokenClass *string          `json:"token-class"`
	ContractID *string          `json:"contract-id"`
	TokenIDs   *json.RawMessage `json:"token-ids"`
}

// Process inspects one contract event. It returns (nil, nil) for foreign
// traffic (wrong topic, or a print that is not a token-metadata-update), a
// non-nil error for a notification that matched the tag but violated the
// payload shape, and a task otherwise. Errors are diagnostics, never fatal
// to the caller's loop.
func (d *Decoder) Process(ev model.ContractEvent) (*model.RefreshTask, error) {
	if ev.Topic != PrintTopic {
		return nil, nil
	}

	value := unwrapValue(ev.Value)

	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		// print values are arbitrary Clarity output; non-object values are
		// foreign traffic, not malformed notifications.
		return nil, nil
	}
	if env.Notification == nil || *env.Notification != NotificationTag {
		return nil, nil
	}

	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, fmt.Errorf("missing payload")
	}

	var p payload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if p.TokenClass == nil {
		return nil, fmt.Errorf("payload: missing token-class")
	}
	class := model.TokenClass(*p.TokenClass)
	if !class.Valid() {
		return nil, fmt.Errorf("payload: unknown token-class %q", *p.TokenClass)
	}
	if p.ContractID == nil || *p.ContractID == "" {
		return nil, fmt.Errorf("payload: missing contract-id")
	}

	var tokenIDs []uint64
	if p.TokenIDs != nil {
		if class != model.TokenClassNFT {
			return nil, fmt.Errorf("payload: token-ids not allowed for token-class %q", class)
		}
		if err := json.Unmarshal(*p.TokenIDs, &tokenIDs); err != nil {
			return nil, fmt.Errorf("payload: decode token-ids: %w", err)
		}
		if len(tokenIDs) == 0 {
			return nil, fmt.Errorf("payload: token-ids must not be empty")
		}
		if len(tokenIDs) > MaxTokenIDs {
			return nil, fmt.Errorf("payload: token-ids has %d entries, limit is %d", len(tokenIDs), MaxTokenIDs)
		}
		for _, id := range tokenIDs {
			if id == 0 {
				return nil, fmt.Errorf("payload: token-ids must be positive")
			}
		}
	}

	if !d.trustPayload && !sameOrigin(*p.ContractID, ev.ContractID) {
		return nil, fmt.Errorf("payload contract-id %q does not match emitter %q", *p.ContractID, ev.ContractID)
	}

	return &model.RefreshTask{
		ContractID:  *p.ContractID,
		TokenClass:  class,
		TokenIDs:    tokenIDs,
		Emitter:     ev.ContractID,
		TxID:        ev.TxID,
		EventIndex:  ev.EventIndex,
		BlockHeight: ev.BlockHeight,
	}, nil
}

// unwrapValue peels the node's {hex, repr, value} wrapper when the feed
// delivers values in that form; otherwise the raw value is returned as is.
func unwrapValue(raw json.RawMessage) json.RawMessage {
	var wrapper struct {
		Hex   *string         `json:"hex"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return raw
	}
	if wrapper.Hex != nil && len(wrapper.Value) > 0 {
		return wrapper.Value
	}
	return raw
}

// sameOrigin accepts a payload contract that is the emitter itself or another
// contract deployed by the emitter's principal.
func sameOrigin(claimed, emitter string) bool {
	if claimed == emitter {
		return true
	}
	claimedAddr, _, ok1 := strings.Cut(claimed, ".")
	emitterAddr, _, ok2 := strings.Cut(emitter, ".")
	if !ok1 || !ok2 {
		return false
	}
	return claimedAddr != "" && claimedAddr == emitterAddr
}
