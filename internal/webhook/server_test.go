package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"metadataWatch/internal/model"
)

const blockBody = `{
	"block_height": 42,
	"events": [
		{"txid": "0x01", "event_index": 0, "committed": true, "type": "contract_event",
		 "contract_event": {"contract_identifier": "SP1.a", "topic": "print", "value": {"notification": "token-metadata-update"}}},
		{"txid": "0x01", "event_index": 1, "committed": true, "type": "stx_transfer_event"},
		{"txid": "0x02", "event_index": 0, "committed": false, "type": "contract_event",
		 "contract_event": {"contract_identifier": "SP2.b", "topic": "print", "value": 1}}
	]
}`

func TestHandleNewBlockForwardsCommittedContractEvents(t *testing.T) {
	events := make(chan model.ContractEvent, 8)
	srv := NewServer("127.0.0.1:0", "", events, nil)

	req := httptest.NewRequest(http.MethodPost, "/new_block", strings.NewReader(blockBody))
	rec := httptest.NewRecorder()
	srv.handleNewBlock(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d", rec.Code)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", len(events))
	}

	ev := <-events
	if ev.ContractID != "SP1.a" || ev.BlockHeight != 42 || ev.TxID != "0x01" {
		t.Fatalf("event mismatch: %+v", ev)
	}
}

func TestHandleNewBlockAuth(t *testing.T) {
	events := make(chan model.ContractEvent, 1)
	srv := NewServer("127.0.0.1:0", "s3cret", events, nil)

	req := httptest.NewRequest(http.MethodPost, "/new_block", strings.NewReader(blockBody))
	rec := httptest.NewRecorder()
	srv.handleNewBlock(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/new_block", strings.NewReader(blockBody))
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	srv.handleNewBlock(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestHandleNewBlockRejectsBadPayload(t *testing.T) {
	events := make(chan model.ContractEvent, 1)
	srv := NewServer("127.0.0.1:0", "", events, nil)

	req := httptest.NewRequest(http.MethodPost, "/new_block", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.handleNewBlock(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/new_block", nil)
	rec = httptest.NewRecorder()
	srv.handleNewBlock(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}
