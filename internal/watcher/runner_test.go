package watcher

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"

	"metadataWatch/internal/model"
	"metadataWatch/internal/notify"
)

type memorySink struct {
	mu    sync.Mutex
	tasks []model.RefreshTask
}

func (s *memorySink) PutTaskBatch(_ context.Context, tasks []model.RefreshTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, tasks...)
	return nil
}

func printEvent(emitter, txID string, height uint64, value string) model.ContractEvent {
	return model.ContractEvent{
		ContractID:  emitter,
		Topic:       "print",
		TxID:        txID,
		BlockHeight: height,
		Value:       json.RawMessage(value),
	}
}

func TestRunnerEmitsTasksInOrder(t *testing.T) {
	sink := &memorySink{}
	runner := NewRunner(notify.NewDecoder(notify.Config{}), sink, nil)

	events := make(chan model.ContractEvent, 4)
	events <- printEvent("SP1.a", "0x01", 10, `{"notification":"token-metadata-update","payload":{"token-class":"ft","contract-id":"SP1.a"}}`)
	events <- printEvent("SP1.a", "0x02", 10, `"unrelated print"`)
	events <- printEvent("SP1.a", "0x03", 11, `{"notification":"token-metadata-update","payload":{"token-class":"bogus","contract-id":"SP1.a"}}`)
	events <- printEvent("SP2.b", "0x04", 11, `{"notification":"token-metadata-update","payload":{"token-class":"nft","contract-id":"SP2.b","token-ids":[7,8]}}`)
	close(events)

	if err := runner.Run(context.Background(), events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(sink.tasks))
	}
	if sink.tasks[0].TxID != "0x01" || sink.tasks[1].TxID != "0x04" {
		t.Fatalf("task order mismatch: %+v", sink.tasks)
	}
	if !reflect.DeepEqual(sink.tasks[1].TokenIDs, []uint64{7, 8}) {
		t.Fatalf("token ids mismatch: %v", sink.tasks[1].TokenIDs)
	}
	if sink.tasks[0].ObservedAt == "" {
		t.Fatalf("observed_at should be stamped")
	}
}

func TestRunnerSurvivesMalformedNotifications(t *testing.T) {
	sink := &memorySink{}
	runner := NewRunner(notify.NewDecoder(notify.Config{}), sink, nil)

	events := make(chan model.ContractEvent, 3)
	events <- printEvent("SP1.a", "0x01", 1, `{"notification":"token-metadata-update","payload":null}`)
	events <- printEvent("SP1.a", "0x02", 1, `{"notification":"token-metadata-update","payload":{"token-class":"nft","contract-id":"SP1.a","token-ids":[0]}}`)
	events <- printEvent("SP1.a", "0x03", 2, `{"notification":"token-metadata-update","payload":{"token-class":"sft","contract-id":"SP1.a"}}`)
	close(events)

	if err := runner.Run(context.Background(), events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.tasks) != 1 || sink.tasks[0].TxID != "0x03" {
		t.Fatalf("expected only the valid task, got %+v", sink.tasks)
	}
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	sink := &memorySink{}
	runner := NewRunner(notify.NewDecoder(notify.Config{}), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan model.ContractEvent)
	if err := runner.Run(ctx, events); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
