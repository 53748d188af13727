package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"metadataWatch/internal/model"
)

const defaultPageLimit = 100

// Client wraps the node core API and provides helper methods.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageLimit  int
}

// NewClient creates a new chain client for the node URL.
func NewClient(nodeURL string) (*Client, error) {
	if nodeURL == "" {
		return nil, fmt.Errorf("node url is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(nodeURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageLimit:  defaultPageLimit,
	}, nil
}

type coreInfo struct {
	StacksTipHeight uint64 `json:"stacks_tip_height"`
}

// LatestBlockHeight returns the current chain tip height.
func (c *Client) LatestBlockHeight(ctx context.Context) (uint64, error) {
	var info coreInfo
	if err := c.getJSON(ctx, "/v2/info", &info); err != nil {
		return 0, err
	}
	return info.StacksTipHeight, nil
}

type eventPage struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
	Events []struct {
		TxID        string `json:"tx_id"`
		EventIndex  uint64 `json:"event_index"`
		ContractLog struct {
			ContractID string          `json:"contract_id"`
			Topic      string          `json:"topic"`
			Value      json.RawMessage `json:"value"`
		} `json:"contract_log"`
	} `json:"events"`
}

// EventsByHeight returns the contract events of every transaction in the
// block at the given height, in event order.
func (c *Client) EventsByHeight(ctx context.Context, height uint64) ([]model.ContractEvent, error) {
	var events []model.ContractEvent
	offset := 0
	for {
		path := fmt.Sprintf(
			"/extended/v1/tx/events?type=smart_contract_log&block_height=%d&limit=%d&offset=%d",
			height, c.pageLimit, offset,
		)
		var page eventPage
		if err := c.getJSON(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("events at height %d: %w", height, err)
		}

		for _, ev := range page.Events {
			events = append(events, model.ContractEvent{
				ContractID:  ev.ContractLog.ContractID,
				Topic:       ev.ContractLog.Topic,
				TxID:        ev.TxID,
				EventIndex:  ev.EventIndex,
				BlockHeight: height,
				Value:       ev.ContractLog.Value,
			})
		}

		offset += len(page.Events)
		if len(page.Events) == 0 || offset >= page.Total {
			return events, nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
